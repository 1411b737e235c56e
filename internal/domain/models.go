package domain

import "time"

// Role names trusted from the identity middleware.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Requester identifies the authenticated caller of a use case.
type Requester struct {
	UserID string
	Role   string
}

func (r Requester) IsAdmin() bool { return r.Role == RoleAdmin }

// Quiz is the gradable content of an assessment. It belongs to exactly one of a
// course or a test series.
type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Questions    []Question `json:"questions"`
	TimeLimit    int        `json:"timeLimit"` // minutes, 0 = unlimited
	PassingScore float64    `json:"passingScore"`
	Published    bool       `json:"isPublished"`
	OwnerID      string     `json:"createdBy"`
	MaxAttempts  int        `json:"maxAttempts"` // 0 = unlimited
	AllowReview  bool       `json:"allowReview"`
	CourseID     string     `json:"courseId,omitempty"`
	TestSeriesID string     `json:"testSeriesId,omitempty"`
}

// TimeLimitDuration returns the time limit, or 0 when the quiz is untimed.
func (q Quiz) TimeLimitDuration() time.Duration {
	if q.TimeLimit <= 0 {
		return 0
	}
	return time.Duration(q.TimeLimit) * time.Minute
}

// MaxScore is the sum of every question's point value.
func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Question looks up a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// ProgressTarget is the id reported to the progress collaborator: the parent
// course when there is one, the quiz itself otherwise.
func (q Quiz) ProgressTarget() string {
	if q.CourseID != "" {
		return q.CourseID
	}
	return q.ID
}

// ForLearner returns a copy with every correctness-revealing field removed.
func (q Quiz) ForLearner() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.Redacted()
	}
	return out
}

// TestSeries is a purchasable or free bundle of quizzes.
type TestSeries struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Published bool    `json:"isPublished"`
	Price     float64 `json:"price"`
}

// IsFree reports whether enrolment requires no purchase.
func (s TestSeries) IsFree() bool { return s.Price <= 0 }

// Correctness is the tri-state grading outcome of a single answer.
type Correctness string

const (
	Correct   Correctness = "correct"
	Incorrect Correctness = "incorrect"
	Pending   Correctness = "pending"
)

// AnswerSubmission is a raw learner response to one question.
type AnswerSubmission struct {
	QuestionID      string   `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions,omitempty"`
	TextAnswer      string   `json:"textAnswer,omitempty"`
}

// Answer is a graded response stored on an attempt.
type Answer struct {
	QuestionID      string      `json:"questionId"`
	SelectedOptions []string    `json:"selectedOptions,omitempty"`
	TextAnswer      string      `json:"textAnswer,omitempty"`
	Correctness     Correctness `json:"correctness"`
	PointsEarned    int         `json:"pointsEarned"`
}

// Attempt is one instance of a user taking a quiz. It is frozen once Completed is set.
type Attempt struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quizId"`
	UserID         string     `json:"userId"`
	StartedAt      time.Time  `json:"startTime"`
	EndedAt        *time.Time `json:"endTime,omitempty"`
	Answers        []Answer   `json:"answers"`
	Score          int        `json:"score"`
	MaxScore       int        `json:"maxScore"`
	Percentage     float64    `json:"percentage"`
	Passed         bool       `json:"passed"`
	Completed      bool       `json:"isCompleted"`
	ElapsedSeconds int        `json:"timeSpent"`
}

// Elapsed returns how long the attempt has been running at now.
func (a Attempt) Elapsed(now time.Time) time.Duration {
	return now.Sub(a.StartedAt)
}

// Redacted strips graded answers so an attempt can be shown before review is allowed.
func (a Attempt) Redacted() Attempt {
	out := a
	out.Answers = make([]Answer, len(a.Answers))
	for i, answer := range a.Answers {
		answer.Correctness = ""
		answer.PointsEarned = 0
		out.Answers[i] = answer
	}
	return out
}

// ScoreSummary is the compact result returned alongside a submitted attempt.
type ScoreSummary struct {
	Score      int     `json:"score"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	TimeSpent  int     `json:"timeSpent"`
}

// LeaderboardEntry is one ranked row of a quiz leaderboard.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	Score       int       `json:"score"`
	Percentage  float64   `json:"percentage"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completedAt"`
}

// Leaderboard captures the ordered top entries for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AttemptStats aggregates attempt counts across all quizzes.
type AttemptStats struct {
	Total        int64   `json:"totalAttempts"`
	Completed    int64   `json:"completedAttempts"`
	Incomplete   int64   `json:"incompleteAttempts"`
	AverageScore float64 `json:"averageScore"`
}
