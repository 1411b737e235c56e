package cli

import (
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	transport "assessment-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a bearer token for local testing against the API.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (or JWT_SECRET) must be set")
			}
			tok, err := transport.NewAuthenticator(cfg.Auth.JWTSecret).IssueToken(userID, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "admin", "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", domain.RoleAdmin, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
