package app

import (
	"testing"

	"assessment-service/internal/domain"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewLeaderboardHub()
	ch, cancel := hub.Subscribe(domain.Leaderboard{QuizID: "quiz-1"})

	if got := <-ch; got.QuizID != "quiz-1" || len(got.Entries) != 0 {
		t.Fatalf("unexpected initial board %+v", got)
	}
	if !hub.HasSubscribers("quiz-1") {
		t.Fatalf("expected subscriber")
	}

	hub.Publish(domain.Leaderboard{QuizID: "quiz-2"})
	hub.Publish(domain.Leaderboard{QuizID: "quiz-1", Entries: []domain.LeaderboardEntry{{Rank: 1, UserID: "u1"}}})
	if got := <-ch; len(got.Entries) != 1 {
		t.Fatalf("expected published board, got %+v", got)
	}

	cancel()
	cancel()
	if hub.HasSubscribers("quiz-1") {
		t.Fatalf("expected no subscribers after cancel")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewLeaderboardHub()
	ch, cancel := hub.Subscribe(domain.Leaderboard{QuizID: "quiz-1"})
	defer cancel()

	for i := 0; i < 50; i++ {
		hub.Publish(domain.Leaderboard{QuizID: "quiz-1", Entries: make([]domain.LeaderboardEntry, i)})
	}

	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last.Entries) != 49 {
		t.Fatalf("expected newest board last, got %d entries", len(last.Entries))
	}
}
