package ai

import (
	"fmt"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
)

// severityContext 按严重程度给出固定的上下文句子。
var severityContext = map[phq9.Severity]string{
	phq9.Minimal:          "The user has minimal depression symptoms.",
	phq9.Mild:             "The user has mild depression symptoms.",
	phq9.Moderate:         "The user has moderate depression symptoms.",
	phq9.ModeratelySevere: "The user has moderately severe depression symptoms.",
	phq9.Severe:           "The user has severe depression symptoms.",
}

// ContextFor returns the fixed sentence describing a severity band. Unknown
// values are treated as severe.
func ContextFor(severity phq9.Severity) string {
	if sentence, ok := severityContext[severity]; ok {
		return sentence
	}
	return severityContext[phq9.Severe]
}

// BuildPrompt prefixes the user's turn with the severity sentence.
func BuildPrompt(severity phq9.Severity, userText string) string {
	return fmt.Sprintf("%s User says: %s", ContextFor(severity), userText)
}
