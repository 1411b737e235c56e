package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"assessment-service/internal/config"
	"github.com/spf13/cobra"
)

// NewSweepCmd runs the cleanup operations once, for cron jobs outside the
// server process or manual maintenance.
func NewSweepCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run attempt cleanup once",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expired",
		Short: "Delete abandoned and orphaned attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents(cmd, *configPath)
			if err != nil {
				return err
			}
			defer c.Close()
			report, err := c.sweeper.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	})

	var days int
	old := &cobra.Command{
		Use:   "old",
		Short: "Delete completed attempts older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents(cmd, *configPath)
			if err != nil {
				return err
			}
			defer c.Close()
			if days == 0 {
				days = c.sweeper.RetentionDays()
			}
			n, err := c.sweeper.PurgeCompleted(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"removed": n, "daysOld": days})
		},
	}
	old.Flags().IntVar(&days, "days", 0, "age in days (default: configured retention)")
	cmd.AddCommand(old)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print attempt statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadComponents(cmd, *configPath)
			if err != nil {
				return err
			}
			defer c.Close()
			stats, err := c.sweeper.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	})
	return cmd
}

func loadComponents(cmd *cobra.Command, configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return wire(cmd.Context(), cfg, newLogger(cfg.Log.Level, cfg.Log.Format))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
