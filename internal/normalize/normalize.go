// Package normalize converts loosely-shaped quiz payloads into the canonical
// domain model. Backends are inconsistent about field names, nesting and
// presence; rather than rejecting such payloads this package degrades every
// malformed piece to a safe default and logs what it substituted.
package normalize

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-session-service/internal/domain"
)

// Normalizer maps raw payloads onto domain.Quiz. It never fails: the worst
// input produces an empty quiz with default settings.
type Normalizer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// typeAliases maps every known spelling of a question type onto its canonical
// value. Unrecognized types fall back to multiple choice.
var typeAliases = map[string]domain.QuestionType{
	"multiple_choice": domain.MultipleChoice,
	"single_choice":   domain.SingleChoice,
	"true_false":      domain.TrueFalse,
	"text":            domain.FreeText,
	"code":            domain.Code,
	"matching":        domain.Matching,
	"ordering":        domain.Ordering,
	"single":          domain.SingleChoice,
	"multiple":        domain.MultipleChoice,
}

func defaultSettings() domain.Settings {
	return domain.Settings{
		TimeLimit:    0,
		PassingScore: 70,
		ShowResults:  true,
		ShowScore:    true,
	}
}

func defaultMetadata() domain.Metadata {
	return domain.Metadata{
		Difficulty: "beginner",
		Category:   "general",
	}
}

// emptyQuiz is the result for payloads that cannot be interpreted at all.
func emptyQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-" + uuid.NewString(),
		Title:     "Untitled Quiz",
		Questions: []domain.Question{},
		Settings:  defaultSettings(),
		Metadata:  defaultMetadata(),
	}
}

// Quiz normalizes a decoded JSON payload. The input may be nil, a canonical
// quiz object, or a {data: ...} envelope.
func (n *Normalizer) Quiz(raw any) domain.Quiz {
	if m, ok := raw.(map[string]any); ok {
		if inner, ok := m["data"]; ok {
			raw = inner
		}
	}

	m, ok := raw.(map[string]any)
	if !ok || m == nil {
		n.log.Warn("quiz payload is not an object, using empty quiz")
		return emptyQuiz()
	}

	quiz := domain.Quiz{
		ID:          stringID(m["id"]),
		Title:       stringOr(m["title"], "Untitled Quiz"),
		Description: stringOr(m["description"], ""),
		CourseID:    stringOr(m["courseId"], ""),
		Questions:   n.questions(m["questions"]),
		Settings:    n.settings(m["settings"]),
		Metadata:    n.metadata(m["metadata"]),
		Published:   publishedFlag(m),
	}
	if quiz.ID == "" {
		quiz.ID = "quiz-" + uuid.NewString()
		n.log.Warn("quiz payload has no id, generated one", zap.String("quizId", quiz.ID))
	}
	return quiz
}

// publishedFlag gates only on an explicit false. Payloads that never mention
// publication stay playable.
func publishedFlag(m map[string]any) bool {
	if b, ok := m["isPublished"].(bool); ok {
		return b
	}
	if b, ok := m["published"].(bool); ok {
		return b
	}
	return true
}

func (n *Normalizer) questions(raw any) []domain.Question {
	list, ok := raw.([]any)
	if !ok {
		if raw != nil {
			n.log.Warn("quiz questions field is not an array, dropping it")
		}
		return []domain.Question{}
	}

	questions := make([]domain.Question, 0, len(list))
	for i, item := range list {
		q, ok := item.(map[string]any)
		if !ok {
			n.log.Warn("question is not an object, skipping", zap.Int("index", i))
			continue
		}
		questions = append(questions, n.question(q, i))
	}
	return questions
}

func (n *Normalizer) question(q map[string]any, index int) domain.Question {
	id := stringID(q["id"])
	if id == "" {
		id = "q-" + uuid.NewString()
	}

	rawType := q["type"]
	if rawType == nil {
		rawType = q["question_type"]
	}
	qType := n.questionType(rawType, index)

	prompt := firstString(q["prompt"], q["text"], q["question"], q["question_text"])
	options := n.options(q["options"], index)

	points := 1
	if f, ok := q["points"].(float64); ok {
		points = int(f)
		if points < 0 {
			n.log.Warn("negative question points clamped to zero", zap.Int("index", index))
			points = 0
		}
	}

	question := domain.Question{
		ID:             id,
		Type:           qType,
		Prompt:         prompt,
		Description:    stringOr(q["description"], ""),
		CodeSnippet:    stringOr(q["codeSnippet"], ""),
		Options:        options,
		CorrectAnswers: n.correctAnswers(q, options),
		Explanation:    stringOr(q["explanation"], ""),
		Points:         points,
	}
	if qType.Choice() {
		question.CorrectAnswers = n.pruneUnknownAnswers(question, index)
	}
	return question
}

func (n *Normalizer) questionType(raw any, index int) domain.QuestionType {
	s, ok := raw.(string)
	if !ok {
		if raw != nil {
			n.log.Warn("question type is not a string, defaulting", zap.Int("index", index))
		}
		return domain.MultipleChoice
	}
	key := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	if t, ok := typeAliases[key]; ok {
		return t
	}
	n.log.Warn("unrecognized question type, defaulting", zap.String("type", s), zap.Int("index", index))
	return domain.MultipleChoice
}

func (n *Normalizer) options(raw any, index int) []domain.Option {
	list, ok := raw.([]any)
	if !ok {
		if raw != nil {
			n.log.Warn("question options field is not an array", zap.Int("index", index))
		}
		return []domain.Option{}
	}

	options := make([]domain.Option, 0, len(list))
	for i, item := range list {
		o, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := stringID(o["id"])
		if id == "" {
			id = fmt.Sprintf("opt-%s-%d", uuid.NewString(), i)
		}
		correct := boolOr(o["correct"], false) || boolOr(o["isCorrect"], false)
		options = append(options, domain.Option{
			ID:      id,
			Text:    stringOr(o["text"], ""),
			Correct: correct,
		})
	}
	return options
}

// correctAnswers resolves correct-answer IDs from, in priority order: an
// explicit correctAnswers array, a singular correctAnswer field, or options
// flagged correct.
func (n *Normalizer) correctAnswers(q map[string]any, options []domain.Option) []string {
	if list, ok := q["correctAnswers"].([]any); ok {
		answers := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				answers = append(answers, s)
			}
		}
		return answers
	}
	if raw, ok := q["correctAnswer"]; ok && raw != nil {
		return []string{stringID(raw)}
	}
	answers := make([]string, 0)
	for _, opt := range options {
		if opt.Correct {
			answers = append(answers, opt.ID)
		}
	}
	return answers
}

// pruneUnknownAnswers drops correct-answer IDs that reference no option, so
// choice questions always satisfy the referential invariant.
func (n *Normalizer) pruneUnknownAnswers(q domain.Question, index int) []string {
	known := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		known[opt.ID] = struct{}{}
	}
	kept := make([]string, 0, len(q.CorrectAnswers))
	for _, id := range q.CorrectAnswers {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
			continue
		}
		n.log.Warn("correct answer references unknown option, dropping",
			zap.Int("index", index), zap.String("answerId", id))
	}
	return kept
}

// settings merges explicit values over hard defaults; explicit values win.
func (n *Normalizer) settings(raw any) domain.Settings {
	s := defaultSettings()
	m, ok := raw.(map[string]any)
	if !ok {
		return s
	}
	if f, ok := m["timeLimit"].(float64); ok {
		if f < 0 {
			n.log.Warn("negative time limit ignored, quiz is untimed", zap.Int("timeLimit", int(f)))
		} else {
			s.TimeLimit = int(f)
		}
	}
	if f, ok := m["passingScore"].(float64); ok {
		score := int(f)
		if score < 0 || score > 100 {
			n.log.Warn("passing score out of range, keeping default", zap.Int("passingScore", score))
		} else {
			s.PassingScore = score
		}
	}
	if b, ok := m["showResults"].(bool); ok {
		s.ShowResults = b
	}
	if b, ok := m["allowRetries"].(bool); ok {
		s.AllowRetries = b
	}
	if b, ok := m["shuffleQuestions"].(bool); ok {
		s.ShuffleQuestions = b
	}
	if b, ok := m["shuffleAnswers"].(bool); ok {
		s.ShuffleAnswers = b
	}
	if b, ok := m["showExplanations"].(bool); ok {
		s.ShowExplanations = b
	}
	if b, ok := m["showCorrectAnswers"].(bool); ok {
		s.ShowCorrectAnswers = b
	}
	if b, ok := m["showScore"].(bool); ok {
		s.ShowScore = b
	}
	return s
}

func (n *Normalizer) metadata(raw any) domain.Metadata {
	md := defaultMetadata()
	m, ok := raw.(map[string]any)
	if !ok {
		return md
	}
	if s, ok := m["author"].(string); ok {
		md.Author = s
	}
	if s, ok := m["difficulty"].(string); ok && s != "" {
		md.Difficulty = s
	}
	if s, ok := m["category"].(string); ok && s != "" {
		md.Category = s
	}
	if list, ok := m["tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				md.Tags = append(md.Tags, s)
			}
		}
	}
	if f, ok := m["attemptsCount"].(float64); ok {
		md.AttemptsCount = int(f)
	}
	if f, ok := m["averageScore"].(float64); ok {
		md.AverageScore = f
	}
	return md
}

// stringID renders string or numeric identifiers; JSON numbers decode as
// float64.
func stringID(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func stringOr(raw any, fallback string) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fallback
}

func boolOr(raw any, fallback bool) bool {
	if b, ok := raw.(bool); ok {
		return b
	}
	return fallback
}

func firstString(candidates ...any) string {
	for _, c := range candidates {
		if s, ok := c.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
