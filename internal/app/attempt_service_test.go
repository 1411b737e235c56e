package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     *app.AttemptService
	store   *memory.AttemptStore
	quizzes *memory.StaticQuizzes
	catalog *memory.StaticCatalog
	events  *memory.EventLog
	clock   *fakeClock
}

func newFixture(t *testing.T, opts ...app.AttemptOption) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewAttemptStore(),
		quizzes: memory.NewStaticQuizzes(timedQuiz(), seriesQuiz("paid-quiz", "paid"), seriesQuiz("free-quiz", "free")),
		catalog: memory.NewStaticCatalog(
			domain.TestSeries{ID: "paid", Title: "Paid series", Published: true, Price: 499},
			domain.TestSeries{ID: "free", Title: "Free series", Published: true},
		),
		events: memory.NewEventLog(nil),
		clock:  newFakeClock(),
	}
	sweeper := app.NewSweeperWithClock(f.store, f.quizzes, app.SweeperConfig{}, f.clock.Now)
	base := []app.AttemptOption{
		app.WithClock(f.clock.Now),
		app.WithSweeper(sweeper),
		app.WithProgressTracker(f.events),
		app.WithPointsAwarder(f.events),
	}
	f.svc = app.NewAttemptService(f.store, f.quizzes, f.catalog, append(base, opts...)...)
	return f
}

func timedQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Capitals",
		TimeLimit:    30,
		PassingScore: 60,
		Published:    true,
		OwnerID:      "instructor",
		CourseID:     "course-1",
		Questions: []domain.Question{
			{
				ID:     "mc",
				Text:   "Which are European capitals?",
				Points: 2,
				Kind: domain.MultipleChoice{Options: []domain.Option{
					{ID: "A", Text: "Paris", Correct: true},
					{ID: "B", Text: "Rome", Correct: true},
					{ID: "C", Text: "Sydney"},
				}},
			},
			{ID: "sa", Text: "Capital of France?", Points: 2, Kind: domain.ShortAnswer{CorrectAnswer: "Paris"}},
		},
	}
}

func seriesQuiz(id, seriesID string) domain.Quiz {
	q := timedQuiz()
	q.ID = id
	q.CourseID = ""
	q.TestSeriesID = seriesID
	return q
}

func allCorrect() []domain.AnswerSubmission {
	return []domain.AnswerSubmission{
		{QuestionID: "mc", SelectedOptions: []string{"B", "A"}},
		{QuestionID: "sa", TextAnswer: " paris "},
	}
}

func TestStartAttemptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)
	require.False(t, first.Resumed)
	require.Equal(t, 4, first.Attempt.MaxScore)

	f.clock.Advance(time.Minute)
	second, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)
	require.True(t, second.Resumed)
	require.Equal(t, first.Attempt.ID, second.Attempt.ID)
}

func TestStartAttemptHidesAnswers(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.StartAttempt(context.Background(), "quiz-1", "u1")
	require.NoError(t, err)
	for _, opt := range res.Quiz.Questions[0].Options() {
		require.False(t, opt.Correct)
	}
	sa, ok := res.Quiz.Questions[1].Kind.(domain.ShortAnswer)
	require.True(t, ok)
	require.Empty(t, sa.CorrectAnswer)
}

func TestStartAttemptReplacesStaleAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)

	f.clock.Advance(34 * time.Minute)
	same, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)
	require.Equal(t, first.Attempt.ID, same.Attempt.ID)

	f.clock.Advance(2 * time.Minute) // 36 minutes >= 30 + 5
	fresh, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)
	require.NotEqual(t, first.Attempt.ID, fresh.Attempt.ID)
	require.False(t, fresh.Resumed)
	require.Equal(t, f.clock.Now(), fresh.Attempt.StartedAt)

	_, err = f.store.Get(ctx, first.Attempt.ID)
	require.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestStartAttemptRejectsUnpublishedAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := timedQuiz()
	draft.ID = "draft"
	draft.Published = false
	f.quizzes.Put(draft)

	_, err := f.svc.StartAttempt(ctx, "draft", "u1")
	require.ErrorIs(t, err, domain.ErrQuizNotPublished)
	require.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = f.svc.StartAttempt(ctx, "nope", "u1")
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestStartAttemptRequiresSeriesEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.StartAttempt(ctx, "paid-quiz", "u1")
	require.Equal(t, domain.KindForbidden, domain.KindOf(err))
	require.Contains(t, domain.MessageOf(err), "purchase")

	_, err = f.svc.StartAttempt(ctx, "free-quiz", "u1")
	require.Equal(t, domain.KindForbidden, domain.KindOf(err))
	require.Contains(t, domain.MessageOf(err), "enroll")

	f.catalog.Enroll("paid", "u1")
	_, err = f.svc.StartAttempt(ctx, "paid-quiz", "u1")
	require.NoError(t, err)
}

func TestStartAttemptRejectsUnpublishedSeries(t *testing.T) {
	f := newFixture(t)
	hidden := seriesQuiz("hidden-quiz", "hidden")
	f.quizzes.Put(hidden)
	f.catalog = memory.NewStaticCatalog(domain.TestSeries{ID: "hidden"})
	svc := app.NewAttemptService(f.store, f.quizzes, f.catalog, app.WithClock(f.clock.Now))

	_, err := svc.StartAttempt(context.Background(), "hidden-quiz", "u1")
	require.ErrorIs(t, err, domain.ErrTestSeriesNotPublished)
}

func TestStartAttemptEnforcesMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	limited := timedQuiz()
	limited.ID = "limited"
	limited.MaxAttempts = 2
	f.quizzes.Put(limited)

	for i := 0; i < 2; i++ {
		res, err := f.svc.StartAttempt(ctx, "limited", "u1")
		require.NoError(t, err)
		_, err = f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
		require.NoError(t, err)
	}

	_, err := f.svc.StartAttempt(ctx, "limited", "u1")
	require.Equal(t, domain.KindForbidden, domain.KindOf(err))
	require.Contains(t, domain.MessageOf(err), "(2)")
}

func TestSubmitAttemptScoresAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, err)

	f.clock.Advance(90 * time.Second)
	out, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.NoError(t, err)
	require.True(t, out.Attempt.Completed)
	require.Equal(t, 4, out.Summary.Score)
	require.Equal(t, 4, out.Summary.MaxScore)
	require.Equal(t, float64(100), out.Summary.Percentage)
	require.True(t, out.Summary.Passed)
	require.Equal(t, 90, out.Summary.TimeSpent)
	require.Equal(t, "mc", out.Attempt.Answers[0].QuestionID)

	progress := f.events.Progress()
	require.Len(t, progress, 1)
	require.Equal(t, "course-1", progress[0].TargetID)
	points := f.events.Points()
	require.Len(t, points, 1)
	require.Equal(t, 100, points[0].Amount)
}

func TestSubmitAttemptFailedAttemptEarnsNoPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")

	out, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", []domain.AnswerSubmission{
		{QuestionID: "mc", SelectedOptions: []string{"A"}},
		{QuestionID: "sa", TextAnswer: "Lyon"},
	})
	require.NoError(t, err)
	require.False(t, out.Summary.Passed)
	require.Len(t, f.events.Progress(), 1)
	require.Empty(t, f.events.Points())
}

type failingCollaborator struct{ calls int }

func (f *failingCollaborator) QuizCompleted(context.Context, string, string, float64) error {
	f.calls++
	return errors.New("progress service down")
}

func (f *failingCollaborator) AwardPoints(context.Context, string, int, string, string) error {
	f.calls++
	return errors.New("gamification down")
}

func TestSubmitAttemptSurvivesCollaboratorFailures(t *testing.T) {
	ctx := context.Background()
	broken := &failingCollaborator{}
	f := newFixture(t, app.WithProgressTracker(broken), app.WithPointsAwarder(broken))
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")

	out, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.NoError(t, err)
	require.True(t, out.Attempt.Completed)
	require.Equal(t, 2, broken.calls)

	stored, err := f.store.Get(ctx, res.Attempt.ID)
	require.NoError(t, err)
	require.True(t, stored.Completed)
}

func TestSubmitAttemptAfterTimeLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	f.clock.Advance(31 * time.Minute)

	_, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", []domain.AnswerSubmission{})
	require.ErrorIs(t, err, domain.ErrAttemptExpired)

	out, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", []domain.AnswerSubmission{
		{QuestionID: "sa", TextAnswer: "Paris"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Summary.Score)
	require.Equal(t, 2, out.Summary.MaxScore)
}

func TestSubmitAttemptGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")

	_, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", nil)
	require.ErrorIs(t, err, domain.ErrAnswersRequired)

	_, err = f.svc.SubmitAttempt(ctx, res.Attempt.ID, "intruder", allCorrect())
	require.ErrorIs(t, err, domain.ErrNotAttemptOwner)

	_, err = f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.ErrorIs(t, err, domain.ErrAttemptCompleted)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestSubmitAttemptVanishedIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	require.NoError(t, f.store.Delete(ctx, res.Attempt.ID))

	_, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.ErrorIs(t, err, domain.ErrAttemptGone)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAtMostOneActiveAttemptAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for round := 0; round < 3; round++ {
		res, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
		require.NoError(t, err)
		_, err = f.svc.StartAttempt(ctx, "quiz-1", "u1")
		require.NoError(t, err)
		requireSingleActive(t, f.store, "quiz-1", "u1")

		_, err = f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
}

func TestConcurrentStartsShareOneAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.StartAttempt(ctx, "quiz-1", "u1")
			if err == nil {
				ids[i] = res.Attempt.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	requireSingleActive(t, f.store, "quiz-1", "u1")
}

func requireSingleActive(t *testing.T, store *memory.AttemptStore, quizID, userID string) {
	t.Helper()
	pending, err := store.ListIncomplete(context.Background())
	require.NoError(t, err)
	n := 0
	for _, a := range pending {
		if a.QuizID == quizID && a.UserID == userID {
			n++
		}
	}
	require.LessOrEqual(t, n, 1)
}

func TestGetAttemptRevealRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _ := f.svc.StartAttempt(ctx, "quiz-1", "u1")
	_, err := f.svc.SubmitAttempt(ctx, res.Attempt.ID, "u1", allCorrect())
	require.NoError(t, err)

	view, err := f.svc.GetAttempt(ctx, res.Attempt.ID, domain.Requester{UserID: "u1", Role: domain.RoleStudent})
	require.NoError(t, err)
	require.Empty(t, view.Attempt.Answers[0].Correctness)
	require.False(t, view.Quiz.Questions[0].Options()[0].Correct)

	view, err = f.svc.GetAttempt(ctx, res.Attempt.ID, domain.Requester{UserID: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, domain.Correct, view.Attempt.Answers[0].Correctness)
	require.True(t, view.Quiz.Questions[0].Options()[0].Correct)

	_, err = f.svc.GetAttempt(ctx, res.Attempt.ID, domain.Requester{UserID: "u2", Role: domain.RoleStudent})
	require.ErrorIs(t, err, domain.ErrNotAttemptOwner)

	reviewable := timedQuiz()
	reviewable.AllowReview = true
	f.quizzes.Put(reviewable)
	view, err = f.svc.GetAttempt(ctx, res.Attempt.ID, domain.Requester{UserID: "u1", Role: domain.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, domain.Correct, view.Attempt.Answers[0].Correctness)
}

func TestListAndDeleteQuizAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.svc.StartAttempt(ctx, "quiz-1", "u1")
	_, _ = f.svc.StartAttempt(ctx, "quiz-1", "u2")

	_, err := f.svc.ListQuizAttempts(ctx, "quiz-1", domain.Requester{UserID: "u1"})
	require.ErrorIs(t, err, domain.ErrNotQuizOwner)

	all, err := f.svc.ListQuizAttempts(ctx, "quiz-1", domain.Requester{UserID: "instructor"})
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := f.svc.ListMyAttempts(ctx, "quiz-1", "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	f.quizzes.Delete("quiz-1")
	_, err = f.svc.DeleteQuizAttempts(ctx, "quiz-1", domain.Requester{UserID: "instructor"})
	require.ErrorIs(t, err, domain.ErrQuizNotFound)

	n, err := f.svc.DeleteQuizAttempts(ctx, "quiz-1", domain.Requester{UserID: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
