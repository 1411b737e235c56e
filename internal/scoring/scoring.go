// Package scoring grades learner responses against quiz content. Everything in
// it is pure: no storage, no clock.
package scoring

import (
	"strings"

	"assessment-service/internal/domain"
)

// Grade scores a single submission against its question. The boolean is false
// when the question type cannot be graded at all, in which case the answer must
// count toward neither earned nor total points.
func Grade(question domain.Question, submission domain.AnswerSubmission) (domain.Answer, bool) {
	answer := domain.Answer{
		QuestionID:      question.ID,
		SelectedOptions: submission.SelectedOptions,
		TextAnswer:      submission.TextAnswer,
		Correctness:     domain.Incorrect,
	}

	var correct bool
	switch k := question.Kind.(type) {
	case domain.MultipleChoice:
		correct = sameSet(submission.SelectedOptions, correctOptionIDs(k.Options))
	case domain.TrueFalse:
		ids := correctOptionIDs(k.Options)
		correct = len(submission.SelectedOptions) == 1 && len(ids) == 1 && submission.SelectedOptions[0] == ids[0]
	case domain.ShortAnswer:
		correct = normalize(submission.TextAnswer) == strings.ToLower(k.CorrectAnswer)
	case domain.Essay:
		answer.Correctness = domain.Pending
		return answer, true
	default:
		return domain.Answer{}, false
	}

	if correct {
		answer.Correctness = domain.Correct
		answer.PointsEarned = question.Points
	}
	return answer, true
}

// Result is the outcome of grading a full submission.
type Result struct {
	Answers    []domain.Answer
	Earned     int
	Total      int
	Percentage float64
}

// Passed reports whether the result meets a passing percentage.
func (r Result) Passed(passingScore float64) bool {
	return r.Percentage >= passingScore
}

// Score grades submissions in order. Answers referencing unknown questions or
// ungradable types are dropped, as are repeated answers to the same question.
func Score(quiz domain.Quiz, submissions []domain.AnswerSubmission) Result {
	res := Result{Answers: make([]domain.Answer, 0, len(submissions))}
	seen := make(map[string]struct{}, len(submissions))
	for _, sub := range submissions {
		if _, dup := seen[sub.QuestionID]; dup {
			continue
		}
		question, ok := quiz.Question(sub.QuestionID)
		if !ok {
			continue
		}
		answer, ok := Grade(question, sub)
		if !ok {
			continue
		}
		seen[sub.QuestionID] = struct{}{}
		res.Answers = append(res.Answers, answer)
		res.Earned += answer.PointsEarned
		res.Total += question.Points
	}
	if res.Total > 0 {
		res.Percentage = float64(res.Earned) / float64(res.Total) * 100
	}
	return res
}

// RewardPoints returns the bonus for a passed attempt: 50 base, +50 at 90% or
// more, otherwise +25 at 75% or more.
func RewardPoints(percentage float64) int {
	points := 50
	switch {
	case percentage >= 90:
		points += 50
	case percentage >= 75:
		points += 25
	}
	return points
}

func correctOptionIDs(options []domain.Option) []string {
	ids := make([]string, 0, len(options))
	for _, opt := range options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

func sameSet(submitted, expected []string) bool {
	if len(submitted) != len(expected) {
		return false
	}
	want := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(submitted))
	for _, id := range submitted {
		if _, ok := want[id]; !ok {
			return false
		}
		got[id] = struct{}{}
	}
	return len(got) == len(want)
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
