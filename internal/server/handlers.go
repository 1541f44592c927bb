package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

// Analyzer is the pipeline surface the handlers drive.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationAnalysis, error)
	WarmUp(ctx context.Context) error
	Health(ctx context.Context) domain.AcceleratorHealth
}

// ModelInfo names the configured classifiers for the response envelope.
// Exposed only on success bodies; error payloads never carry it.
type ModelInfo struct {
	EmotionModel   string `json:"emotion_model"`
	SentimentModel string `json:"sentiment_model"`
	Device         string `json:"device"`
}

// Handler serves the analysis API.
type Handler struct {
	analyzer Analyzer
	models   ModelInfo
	logger   *slog.Logger
}

func NewHandler(analyzer Analyzer, models ModelInfo, logger *slog.Logger) *Handler {
	return &Handler{analyzer: analyzer, models: models, logger: logger}
}

type analyzeRequest struct {
	ConversationID int64 `json:"conversation_id"`
	Messages       []struct {
		Content string `json:"content"`
	} `json:"messages"`
}

type analyzeResponse struct {
	ConversationID int64                        `json:"conversation_id"`
	Analysis       *domain.ConversationAnalysis `json:"analysis"`
	Status         string                       `json:"status"`
	ModelInfo      ModelInfo                    `json:"model_info"`
}

type errorBody struct {
	Type         domain.ErrorType `json:"type"`
	Message      string           `json:"message"`
	Stage        domain.Stage     `json:"stage,omitempty"`
	MessageIndex *int             `json:"message_index,omitempty"`
}

type errorResponse struct {
	Status string    `json:"status"`
	Error  errorBody `json:"error"`
}

// Analyze handles POST /api/v1/analysis/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation(-1, "invalid request body: %v", err))
		return
	}

	messages := make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = domain.Message{Index: i, Content: m.Content}
	}

	AddLogField(r.Context(), "conversation_id", strconv.FormatInt(req.ConversationID, 10))

	result, err := h.analyzer.Analyze(r.Context(), domain.ConversationRequest{
		ConversationID: req.ConversationID,
		Messages:       messages,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	info := h.models
	info.Device = h.analyzer.Health(r.Context()).Device

	writeJSON(w, http.StatusOK, analyzeResponse{
		ConversationID: req.ConversationID,
		Analysis:       result,
		Status:         "success",
		ModelInfo:      info,
	})
}

// Health handles GET /api/v1/analysis/health. Degraded accelerator state is
// reported in the body, never as a non-200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.analyzer.Health(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"accelerator": health,
	})
}

// WarmUp handles GET /api/v1/analysis/warmup.
func (h *Handler) WarmUp(w http.ResponseWriter, r *http.Request) {
	if err := h.analyzer.WarmUp(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "models loaded",
	})
}

// Liveness handles GET /health.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "semantic-analysis",
		"status":  "running",
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var aerr *domain.AnalysisError
	if !errors.As(err, &aerr) {
		aerr = domain.ErrInternal("", "%v", err)
	}

	body := errorBody{
		Type:    aerr.Type,
		Message: aerr.Message,
		Stage:   aerr.Stage,
	}
	if aerr.MessageIndex >= 0 {
		idx := aerr.MessageIndex
		body.MessageIndex = &idx
	}
	writeJSON(w, aerr.HTTPStatusCode(), errorResponse{Status: "error", Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
