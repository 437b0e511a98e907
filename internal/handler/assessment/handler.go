package assessment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

// Handler 提供 PHQ-9 问卷与计分接口。
type Handler struct{}

// New 创建问卷处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册问卷相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assessment", h.handleQuestionnaire)
	r.Post("/assessment/score", h.handleScore)
}

type questionnaire struct {
	Questions    []string `json:"questions"`
	AnswerLabels []string `json:"answerLabels"`
	MaxAnswer    int      `json:"maxAnswer"`
	MaxScore     int      `json:"maxScore"`
}

// Result 是一次计分的结果。
type Result struct {
	Score    int           `json:"score"`
	Severity phq9.Severity `json:"severity"`
	Label    string        `json:"label"`
}

// NewResult 计算答案的得分与严重程度。
func NewResult(answers phq9.Answers) Result {
	score := phq9.Score(answers)
	severity := phq9.Classify(score)
	return Result{Score: score, Severity: severity, Label: severity.Label()}
}

func (h *Handler) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, questionnaire{
		Questions:    phq9.Questions(),
		AnswerLabels: phq9.AnswerLabels(),
		MaxAnswer:    phq9.MaxAnswer,
		MaxScore:     phq9.MaxScore,
	})
}

// handleScore 预览当前答案的得分，不做持久化。
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Answers []int `json:"answers"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answers, err := phq9.ParseAnswers(payload.Answers)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, AnswerError(err))
		return
	}

	utils.RespondJSON(w, http.StatusOK, NewResult(answers))
}

// AnswerError 把答案校验错误转换为客户端可读的信息。
func AnswerError(err error) string {
	switch {
	case errors.Is(err, phq9.ErrTooManyAnswers):
		return "at most 9 answers are allowed"
	case errors.Is(err, phq9.ErrAnswerOutOfRange):
		return "answers must be between 0 and 3"
	default:
		return "invalid answers"
	}
}
