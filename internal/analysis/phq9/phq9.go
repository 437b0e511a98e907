// Package phq9 scores the nine-item PHQ-9 questionnaire and maps the total
// onto the five severity bands used to contextualise the assistant.
package phq9

import (
	"github.com/pkg/errors"
)

const (
	// QuestionCount is the fixed number of PHQ-9 items.
	QuestionCount = 9
	// MaxAnswer is the highest value a single item can take.
	MaxAnswer = 3
	// MaxScore is the highest possible total.
	MaxScore = QuestionCount * MaxAnswer
)

var (
	ErrTooManyAnswers   = errors.New("phq9: more than 9 answers")
	ErrAnswerOutOfRange = errors.New("phq9: answer must be between 0 and 3")
)

// Answers holds one value per question, index-aligned with Questions().
// The zero value means every item was answered "Not at all".
type Answers [QuestionCount]int

// Severity 表示 PHQ-9 总分对应的严重程度区间。
type Severity string

const (
	Minimal          Severity = "minimal"
	Mild             Severity = "mild"
	Moderate         Severity = "moderate"
	ModeratelySevere Severity = "moderately-severe"
	Severe           Severity = "severe"
)

// band upper bounds are inclusive; every score up to MaxScore falls in exactly one.
var bands = []struct {
	upper    int
	severity Severity
	label    string
}{
	{4, Minimal, "Minimal depression"},
	{9, Mild, "Mild depression"},
	{14, Moderate, "Moderate depression"},
	{19, ModeratelySevere, "Moderately severe depression"},
	{MaxScore, Severe, "Severe depression"},
}

// ParseAnswers converts raw form input into Answers. Missing trailing items
// default to 0.
func ParseAnswers(raw []int) (Answers, error) {
	var answers Answers
	if len(raw) > QuestionCount {
		return answers, ErrTooManyAnswers
	}
	for i, v := range raw {
		if v < 0 || v > MaxAnswer {
			return Answers{}, errors.Wrapf(ErrAnswerOutOfRange, "question %d has value %d", i+1, v)
		}
		answers[i] = v
	}
	return answers, nil
}

// Score returns the arithmetic sum of the answers.
func Score(answers Answers) int {
	total := 0
	for _, v := range answers {
		total += v
	}
	return total
}

// Classify maps a score onto its severity band. Out-of-range scores are
// clamped to the nearest band.
func Classify(score int) Severity {
	for _, b := range bands {
		if score <= b.upper {
			return b.severity
		}
	}
	return Severe
}

// Label returns the display text for the band.
func (s Severity) Label() string {
	for _, b := range bands {
		if b.severity == s {
			return b.label
		}
	}
	return ""
}

// Valid reports whether s is one of the five bands.
func (s Severity) Valid() bool {
	return s.Label() != ""
}

// Questions returns the nine PHQ-9 prompts in questionnaire order.
func Questions() []string {
	return append([]string(nil), questions...)
}

// AnswerLabels returns the frequency labels for the values 0..3.
func AnswerLabels() []string {
	return append([]string(nil), answerLabels...)
}

var questions = []string{
	"Little interest or pleasure in doing things",
	"Feeling down, depressed, or hopeless",
	"Trouble falling or staying asleep, or sleeping too much",
	"Feeling tired or having little energy",
	"Poor appetite or overeating",
	"Feeling bad about yourself - or that you are a failure or have let yourself or your family down",
	"Trouble concentrating on things, such as reading the newspaper or watching television",
	"Moving or speaking so slowly that other people could have noticed? Or the opposite - being so fidgety or restless that you have been moving around a lot more than usual",
	"Thoughts that you would be better off dead or of hurting yourself in some way",
}

var answerLabels = []string{
	"Not at all",
	"Several days",
	"More than half the days",
	"Nearly every day",
}
