package domain

import (
	"encoding/json"
	"time"
)

// QuestionType is the closed set of canonical question kinds. Raw payloads
// spell these in several ways; normalization maps every spelling onto one of
// these values.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FreeText       QuestionType = "text"
	Code           QuestionType = "code"
	Matching       QuestionType = "matching"
	Ordering       QuestionType = "ordering"
)

// Choice reports whether answers to this question type reference option IDs.
func (t QuestionType) Choice() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse:
		return true
	}
	return false
}

// Option represents a possible answer for a question. The correctness flag is
// only meaningful for choice-type questions.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models a single quiz question.
type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Description    string       `json:"description,omitempty"`
	CodeSnippet    string       `json:"codeSnippet,omitempty"`
	Options        []Option     `json:"options"`
	CorrectAnswers []string     `json:"correctAnswers"`
	Explanation    string       `json:"explanation,omitempty"`
	Points         int          `json:"points"` // defaults to 1 if zero
}

// Settings holds the scoring and playback rules of a quiz.
type Settings struct {
	TimeLimit          int  `json:"timeLimit"`    // minutes; 0 means untimed
	PassingScore       int  `json:"passingScore"` // percentage in [0,100]
	ShowResults        bool `json:"showResults"`
	AllowRetries       bool `json:"allowRetries"`
	ShuffleQuestions   bool `json:"shuffleQuestions"`
	ShuffleAnswers     bool `json:"shuffleAnswers"`
	ShowExplanations   bool `json:"showExplanations"`
	ShowCorrectAnswers bool `json:"showCorrectAnswers"`
	ShowScore          bool `json:"showScore"`
}

// Metadata carries authoring and usage statistics. Purely informational.
type Metadata struct {
	Author        string   `json:"author,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	AttemptsCount int      `json:"attemptsCount,omitempty"`
	AverageScore  float64  `json:"averageScore,omitempty"`
}

// Quiz is a named, ordered collection of questions with scoring settings.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CourseID    string     `json:"courseId,omitempty"`
	Questions   []Question `json:"questions"`
	Settings    Settings   `json:"settings"`
	Metadata    Metadata   `json:"metadata"`
	Published   bool       `json:"isPublished"`
}

// Answer is one response to a question: a single value for single-choice and
// free-text questions, or a set of values for multi-select. Multi keeps an
// empty multi-select distinguishable from a single empty string.
type Answer struct {
	Value  string
	Values []string
	Multi  bool
}

// SingleAnswer wraps a single-valued response.
func SingleAnswer(value string) Answer {
	return Answer{Value: value}
}

// MultiAnswer wraps a multi-select response.
func MultiAnswer(values ...string) Answer {
	return Answer{Values: values, Multi: true}
}

// Answered reports whether the answer counts as given. An empty multi-select
// does not.
func (a Answer) Answered() bool {
	if a.Multi {
		return len(a.Values) > 0
	}
	return true
}

// MarshalJSON encodes single answers as a string and multi-select answers as
// an array, matching the scoring backend contract.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		values := a.Values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON accepts either wire form.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*a = Answer{Values: values, Multi: true}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*a = Answer{Value: value}
	return nil
}

// AttemptAnswer is one answered question inside an attempt payload.
type AttemptAnswer struct {
	QuestionID string    `json:"questionId"`
	Answer     Answer    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	TimeSpent  int       `json:"timeSpent"` // seconds; per-question timing is not tracked
}

// Attempt is the submission payload for one completed quiz run. Constructed
// once at submit time and immutable after that.
type Attempt struct {
	QuizID      string            `json:"quizId"`
	UserID      string            `json:"userId"`
	Answers     []AttemptAnswer   `json:"answers"`
	TimeSpent   int               `json:"timeSpent"` // aggregate seconds
	Metadata    map[string]string `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
}

// AnswerResult summarizes grading of a single question.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
}

// Result is the scored outcome of an attempt. Produced by the scoring
// collaborator, never fabricated locally except for the documented
// missing-score fallback.
type Result struct {
	Score          int            `json:"score"` // percentage
	Passed         bool           `json:"passed"`
	CorrectAnswers int            `json:"correctAnswers,omitempty"`
	TotalQuestions int            `json:"totalQuestions,omitempty"`
	Answers        []AnswerResult `json:"answers,omitempty"`
	CompletedAt    time.Time      `json:"completedAt"`
}
