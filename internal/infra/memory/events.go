package memory

import (
	"context"
	"log/slog"
	"sync"
)

// ProgressEvent is a recorded course-progress notification.
type ProgressEvent struct {
	UserID     string
	TargetID   string
	Percentage float64
}

// PointsEvent is a recorded reward-points award.
type PointsEvent struct {
	UserID      string
	Amount      int
	Category    string
	Description string
}

// EventLog stands in for the progress and reward collaborators when no broker
// is configured: it logs and records every notification.
type EventLog struct {
	log *slog.Logger

	mu       sync.Mutex
	progress []ProgressEvent
	points   []PointsEvent
}

func NewEventLog(log *slog.Logger) *EventLog {
	if log == nil {
		log = slog.Default()
	}
	return &EventLog{log: log}
}

func (e *EventLog) QuizCompleted(_ context.Context, userID, targetID string, percentage float64) error {
	e.mu.Lock()
	e.progress = append(e.progress, ProgressEvent{UserID: userID, TargetID: targetID, Percentage: percentage})
	e.mu.Unlock()
	e.log.Info("quiz completed", "user_id", userID, "target_id", targetID, "percentage", percentage)
	return nil
}

func (e *EventLog) AwardPoints(_ context.Context, userID string, amount int, category, description string) error {
	e.mu.Lock()
	e.points = append(e.points, PointsEvent{UserID: userID, Amount: amount, Category: category, Description: description})
	e.mu.Unlock()
	e.log.Info("points awarded", "user_id", userID, "amount", amount, "category", category)
	return nil
}

func (e *EventLog) Progress() []ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ProgressEvent(nil), e.progress...)
}

func (e *EventLog) Points() []PointsEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PointsEvent(nil), e.points...)
}
