package phq9

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSumsAnswers(t *testing.T) {
	assert.Equal(t, 0, Score(Answers{}))
	assert.Equal(t, 27, Score(Answers{3, 3, 3, 3, 3, 3, 3, 3, 3}))
	assert.Equal(t, 11, Score(Answers{1, 2, 0, 3, 1, 1, 0, 2, 1}))
}

func TestClassifyBoundaries(t *testing.T) {
	cases := map[int]Severity{
		0:  Minimal,
		4:  Minimal,
		5:  Mild,
		9:  Mild,
		10: Moderate,
		14: Moderate,
		15: ModeratelySevere,
		19: ModeratelySevere,
		20: Severe,
		27: Severe,
	}
	for score, want := range cases {
		assert.Equalf(t, want, Classify(score), "score %d", score)
	}
}

func TestClassifyPartitionsFullRange(t *testing.T) {
	counts := make(map[Severity]int)
	prev := Minimal
	order := []Severity{Minimal, Mild, Moderate, ModeratelySevere, Severe}
	rank := func(s Severity) int {
		for i, o := range order {
			if o == s {
				return i
			}
		}
		return -1
	}

	for score := 0; score <= MaxScore; score++ {
		got := Classify(score)
		require.True(t, got.Valid(), "score %d classified as %q", score, got)
		require.GreaterOrEqual(t, rank(got), rank(prev), "bands must be monotonic at score %d", score)
		counts[got]++
		prev = got
	}

	assert.Len(t, counts, 5)
	assert.Equal(t, 5, counts[Minimal])
	assert.Equal(t, 5, counts[Mild])
	assert.Equal(t, 5, counts[Moderate])
	assert.Equal(t, 5, counts[ModeratelySevere])
	assert.Equal(t, 8, counts[Severe])
}

func TestClassifyOutOfRangeClamps(t *testing.T) {
	assert.Equal(t, Minimal, Classify(-3))
	assert.Equal(t, Severe, Classify(40))
}

func TestParseAnswersPadsMissingItems(t *testing.T) {
	answers, err := ParseAnswers([]int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Answers{2, 3, 0, 0, 0, 0, 0, 0, 0}, answers)
}

func TestParseAnswersRejectsInvalidInput(t *testing.T) {
	_, err := ParseAnswers(make([]int, 10))
	assert.True(t, errors.Is(err, ErrTooManyAnswers))

	_, err = ParseAnswers([]int{0, 4})
	assert.True(t, errors.Is(err, ErrAnswerOutOfRange))

	_, err = ParseAnswers([]int{-1})
	assert.True(t, errors.Is(err, ErrAnswerOutOfRange))
}

func TestSeverityLabels(t *testing.T) {
	assert.Equal(t, "Minimal depression", Minimal.Label())
	assert.Equal(t, "Moderately severe depression", ModeratelySevere.Label())
	assert.Equal(t, "", Severity("unknown").Label())
	assert.Len(t, Questions(), QuestionCount)
	assert.Len(t, AnswerLabels(), MaxAnswer+1)
}
