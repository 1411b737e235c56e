package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	auth   *Authenticator
	store  *memory.AttemptStore
	events *memory.EventLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewAttemptStore()
	quizzes := memory.NewStaticQuizzes(sampleQuiz())
	catalog := memory.NewStaticCatalog()
	events := memory.NewEventLog(log)
	sweeper := app.NewSweeper(store, quizzes, app.SweeperConfig{}, log)
	boards := app.NewLeaderboardService(store, quizzes, memory.NewLeaderboardCache(time.Minute), app.NewLeaderboardHub(), 0, log)
	attempts := app.NewAttemptService(store, quizzes, catalog,
		app.WithLogger(log),
		app.WithSweeper(sweeper),
		app.WithProgressTracker(events),
		app.WithPointsAwarder(events),
		app.WithChangeListener(boards),
	)

	auth := NewAuthenticator(testSecret)
	router := NewRouter(RouterConfig{
		Attempts:    attempts,
		Leaderboard: boards,
		Sweeper:     sweeper,
		Auth:        auth,
		Log:         log,
	})
	return &testServer{router: router, auth: auth, store: store, events: events}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Arithmetic",
		TimeLimit:    30,
		PassingScore: 50,
		Published:    true,
		OwnerID:      "instructor",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Text:   "What is 2 + 2?",
				Points: 1,
				Kind: domain.MultipleChoice{Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
					{ID: "o3", Text: "5"},
				}},
			},
			{ID: "q2", Text: "Spell 4", Points: 1, Kind: domain.ShortAnswer{CorrectAnswer: "four"}},
		},
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", domain.RoleStudent)

	rec := s.do(t, http.MethodPost, "/quizzes/quiz-1/attempts", alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "isCorrect")
	require.NotContains(t, rec.Body.String(), "four")
	started := decode[app.StartResult](t, rec)

	rec = s.do(t, http.MethodPost, "/quizzes/quiz-1/attempts", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, started.Attempt.ID, decode[app.StartResult](t, rec).Attempt.ID)

	submitPath := "/quizzes/attempts/" + started.Attempt.ID + "/submit"
	rec = s.do(t, http.MethodPost, submitPath, alice, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, submitPath, alice, map[string]any{
		"answers": []map[string]any{
			{"questionId": "q1", "selectedOptions": []string{"o2"}},
			{"questionId": "q2", "textAnswer": "Four "},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[app.SubmitResult](t, rec)
	require.Equal(t, 2, result.Summary.Score)
	require.True(t, result.Summary.Passed)
	require.Len(t, s.events.Points(), 1)

	rec = s.do(t, http.MethodPost, submitPath, alice, map[string]any{"answers": []any{}})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/quizzes/quiz-1/leaderboard", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[domain.Leaderboard](t, rec)
	require.Len(t, board.Entries, 1)
	require.Equal(t, "alice", board.Entries[0].UserID)

	rec = s.do(t, http.MethodGet, "/quizzes/quiz-1/my-attempts", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
}

func TestAttemptAccessControl(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice", domain.RoleStudent)
	mallory := s.token(t, "mallory", domain.RoleStudent)
	instructor := s.token(t, "instructor", domain.RoleStudent)

	rec := s.do(t, http.MethodPost, "/quizzes/quiz-1/attempts", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/quizzes/missing/attempts", alice, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "quiz not found", decode[errorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/quizzes/quiz-1/attempts", alice, nil)
	started := decode[app.StartResult](t, rec)

	rec = s.do(t, http.MethodGet, "/quizzes/attempts/"+started.Attempt.ID, mallory, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/quizzes/attempts/"+started.Attempt.ID+"/submit", mallory, map[string]any{"answers": []any{}})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/quizzes/quiz-1/attempts", mallory, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/quizzes/quiz-1/attempts", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/quizzes/quiz-1/attempts", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted":1`)

	rec = s.do(t, http.MethodPost, "/quizzes/attempts/"+started.Attempt.ID+"/submit", alice, map[string]any{"answers": []any{}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, domain.ErrAttemptGone.Error(), decode[errorResponse](t, rec).Error)
}

func TestRejectsForgedTokens(t *testing.T) {
	s := newTestServer(t)
	forged, err := NewAuthenticator("other-secret").IssueToken("alice", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/admin/attempts/cleanup/stats", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := s.auth.IssueToken("alice", domain.RoleStudent, -time.Minute)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/quizzes/quiz-1/leaderboard", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCleanupEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "root", domain.RoleAdmin)
	student := s.token(t, "alice", domain.RoleStudent)

	rec := s.do(t, http.MethodGet, "/admin/attempts/cleanup/stats", student, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, s.store.Create(context.Background(), domain.Attempt{
		ID: "orphan", QuizID: "deleted-quiz", UserID: "bob", StartedAt: time.Now(),
	}))

	rec = s.do(t, http.MethodGet, "/admin/attempts/cleanup/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode[domain.AttemptStats](t, rec).Incomplete)

	rec = s.do(t, http.MethodPost, "/admin/attempts/cleanup/old", admin, map[string]int{"daysOld": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Error, "at least 30")

	rec = s.do(t, http.MethodPost, "/admin/attempts/cleanup/old", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"daysOld":365`)

	rec = s.do(t, http.MethodPost, "/admin/attempts/cleanup/full", admin, map[string]any{"cleanupOld": false})
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[app.FullCleanupReport](t, rec)
	require.NotNil(t, report.Expired)
	require.Equal(t, 1, report.Expired.Orphaned)
	require.Nil(t, report.OldRemoved)

	rec = s.do(t, http.MethodPost, "/admin/attempts/cleanup/expired", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decode[app.SweepReport](t, rec).Removed)
}

func TestLiveLeaderboard(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	viewer := s.token(t, "viewer", domain.RoleStudent)
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/quizzes/quiz-1/leaderboard/live?token=" + viewer
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readBoard(t, conn)
	require.Empty(t, first.Entries)

	alice := s.token(t, "alice", domain.RoleStudent)
	started := decode[app.StartResult](t, s.do(t, http.MethodPost, "/quizzes/quiz-1/attempts", alice, nil))
	rec := s.do(t, http.MethodPost, "/quizzes/attempts/"+started.Attempt.ID+"/submit", alice, map[string]any{
		"answers": []map[string]any{{"questionId": "q1", "selectedOptions": []string{"o2"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	next := readBoard(t, conn)
	require.Len(t, next.Entries, 1)
	require.Equal(t, "alice", next.Entries[0].UserID)
}

func readBoard(t *testing.T, conn *websocket.Conn) domain.Leaderboard {
	t.Helper()
	var msg outboundMessage[domain.Leaderboard]
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "leaderboard", msg.Type)
	return msg.Payload
}
