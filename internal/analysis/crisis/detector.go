// Package crisis screens free text for suicidal-ideation language. It is
// plain pattern matching: paraphrases and misspellings are missed, and a
// pattern inside an unrelated sentence still matches.
package crisis

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPatterns 是默认的危机用语列表（英语与日语）。
var DefaultPatterns = []string{
	`suicide`,
	`kill myself`,
	`end my life`,
	`want to die`,
	`harming myself`,
	`self-harm`,
	`hurt myself`,
	`ending it all`,
	`死にたい`,
	`不要だ`,
	`邪魔`,
	`消えたい`,
}

// Detector matches text against a fixed set of case-insensitive patterns.
type Detector struct {
	patterns []*regexp.Regexp
}

var defaultDetector = MustNew()

// New compiles DefaultPatterns plus any extra patterns. Blank extras are
// ignored.
func New(extra ...string) (*Detector, error) {
	sources := append(append([]string(nil), DefaultPatterns...), extra...)
	d := &Detector{patterns: make([]*regexp.Regexp, 0, len(sources))}
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, errors.Wrapf(err, "compile crisis pattern %q", src)
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// MustNew is New that panics on an invalid pattern.
func MustNew(extra ...string) *Detector {
	d, err := New(extra...)
	if err != nil {
		panic(err)
	}
	return d
}

// Detect reports whether any pattern occurs in text.
func (d *Detector) Detect(text string) bool {
	if d == nil || strings.TrimSpace(text) == "" {
		return false
	}
	for _, re := range d.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// PatternCount returns the number of compiled patterns.
func (d *Detector) PatternCount() int {
	return len(d.patterns)
}

// Detect runs the default detector.
func Detect(text string) bool {
	return defaultDetector.Detect(text)
}

// Notice is the supportive banner shown when Detect fires. It never replaces
// the normal conversation.
type Notice struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Phone   string `json:"phone"`
	CallURL string `json:"callUrl"`
}

// DefaultNotice returns the 988 Suicide & Crisis Lifeline notice.
func DefaultNotice() Notice {
	return Notice{
		Title:   "Crisis Support Available",
		Body:    "If you're experiencing thoughts of suicide or severe distress, please call 988 for immediate support (24/7 Suicide & Crisis Lifeline).",
		Phone:   "988",
		CallURL: "tel:988",
	}
}
