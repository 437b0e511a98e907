package chat

import "github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"

// Profile captures the onboarding outcome of one client. It is created when
// onboarding completes and destroyed by a reset.
type Profile struct {
	ID            string        `json:"id"`
	HasOnboarded  bool          `json:"hasOnboarded"`
	UserName      string        `json:"userName"`
	Score         int           `json:"score"`
	Severity      phq9.Severity `json:"severity"`
	SeverityLabel string        `json:"severityLabel"`
}
