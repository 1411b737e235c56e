package domain

import "encoding/json"

// QuestionType is the wire name of a question variant.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"
)

// Option is a selectable choice of a multiple_choice or true_false question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect,omitempty"`
}

// QuestionKind holds the fields that exist only for one question type.
type QuestionKind interface {
	Type() QuestionType
}

// MultipleChoice is graded by exact set equality with the correct options.
type MultipleChoice struct {
	Options []Option
}

// TrueFalse is graded by matching the single correct option.
type TrueFalse struct {
	Options []Option
}

// ShortAnswer is graded by normalised comparison with CorrectAnswer.
type ShortAnswer struct {
	CorrectAnswer string
}

// Essay has no machine-gradable answer.
type Essay struct{}

// Unsupported preserves a type name this engine cannot grade.
type Unsupported struct {
	Name string
}

func (MultipleChoice) Type() QuestionType { return TypeMultipleChoice }
func (TrueFalse) Type() QuestionType      { return TypeTrueFalse }
func (ShortAnswer) Type() QuestionType    { return TypeShortAnswer }
func (Essay) Type() QuestionType          { return TypeEssay }
func (u Unsupported) Type() QuestionType  { return QuestionType(u.Name) }

// Question is one gradable item of a quiz.
type Question struct {
	ID     string
	Text   string
	Points int
	Kind   QuestionKind
}

// Options returns the choices of an option-based question, nil otherwise.
func (q Question) Options() []Option {
	switch k := q.Kind.(type) {
	case MultipleChoice:
		return k.Options
	case TrueFalse:
		return k.Options
	}
	return nil
}

// Redacted returns the question without option correctness or canonical answer.
func (q Question) Redacted() Question {
	switch k := q.Kind.(type) {
	case MultipleChoice:
		q.Kind = MultipleChoice{Options: redactOptions(k.Options)}
	case TrueFalse:
		q.Kind = TrueFalse{Options: redactOptions(k.Options)}
	case ShortAnswer:
		q.Kind = ShortAnswer{}
	}
	return q
}

func redactOptions(options []Option) []Option {
	out := make([]Option, len(options))
	for i, opt := range options {
		out[i] = Option{ID: opt.ID, Text: opt.Text}
	}
	return out
}

// questionDocument is the flat stored/wire form of a question.
type questionDocument struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Points        int          `json:"points"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	doc := questionDocument{ID: q.ID, Text: q.Text, Points: q.Points}
	switch k := q.Kind.(type) {
	case MultipleChoice:
		doc.Type, doc.Options = TypeMultipleChoice, k.Options
	case TrueFalse:
		doc.Type, doc.Options = TypeTrueFalse, k.Options
	case ShortAnswer:
		doc.Type, doc.CorrectAnswer = TypeShortAnswer, k.CorrectAnswer
	case nil:
	default:
		doc.Type = k.Type()
	}
	return json.Marshal(doc)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var doc questionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	q.ID, q.Text, q.Points = doc.ID, doc.Text, doc.Points
	if q.Points < 0 {
		q.Points = 0
	}
	switch doc.Type {
	case TypeMultipleChoice:
		q.Kind = MultipleChoice{Options: doc.Options}
	case TypeTrueFalse:
		q.Kind = TrueFalse{Options: doc.Options}
	case TypeShortAnswer:
		q.Kind = ShortAnswer{CorrectAnswer: doc.CorrectAnswer}
	case TypeEssay:
		q.Kind = Essay{}
	default:
		q.Kind = Unsupported{Name: string(doc.Type)}
	}
	return nil
}
