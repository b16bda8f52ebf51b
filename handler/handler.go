package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"keeper-bot/internal/domain"
	"keeper-bot/internal/usecase"
)

// Processor is the update-handling surface consumed by the Lambda boundary.
type Processor interface {
	ProcessUpdate(ctx context.Context, upd domain.Update) error
	Poll(ctx context.Context) (int, error)
}

// Handler is the Lambda entry point. It serves both inbound variants: an API
// Gateway proxy event carries one webhook update; any other trigger (e.g. a
// schedule) drains the update queue via polling.
type Handler struct {
	proc          Processor
	pollerEnabled bool
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Processed *int   `json:"processed,omitempty"`
	Debug     string `json:"debug,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func NewHandler(proc Processor, pollerEnabled bool) (*Handler, error) {
	if proc == nil {
		return nil, errors.New("handler: processor must not be nil")
	}
	return &Handler{proc: proc, pollerEnabled: pollerEnabled}, nil
}

func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	var proxy events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &proxy); err == nil && proxy.Body != "" {
		return h.handleWebhook(ctx, proxy), nil
	}
	return h.handlePoll(ctx), nil
}

// handleWebhook processes one pushed update. Once the payload parses, the
// platform always gets an acknowledgment; only a missing bot credential is a
// server error.
func (h *Handler) handleWebhook(ctx context.Context, req events.APIGatewayProxyRequest) Response {
	corrID := correlationID(req.Headers)

	var upd domain.Update
	if err := json.Unmarshal([]byte(req.Body), &upd); err != nil {
		return respond(http.StatusBadRequest, errorResponse{Status: "error", Error: "invalid update payload"}, corrID)
	}

	if err := h.proc.ProcessUpdate(ctx, upd); err != nil {
		slog.Error("failed to process webhook update", "update_id", upd.UpdateID, "err", err)
		return respond(http.StatusInternalServerError, errorResponse{Status: "error", Error: errorCode(err)}, corrID)
	}
	return respond(http.StatusOK, statusResponse{Status: "ok"}, corrID)
}

func (h *Handler) handlePoll(ctx context.Context) Response {
	corrID := uuid.NewString()

	if !h.pollerEnabled {
		return respond(http.StatusOK, statusResponse{Status: "ok", Debug: "poller disabled"}, corrID)
	}

	processed, err := h.proc.Poll(ctx)
	if err != nil {
		slog.Error("poll failed", "err", err)
		status := http.StatusInternalServerError
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorUpstream {
			status = http.StatusBadGateway
		}
		return respond(status, errorResponse{Status: "error", Error: errorCode(err)}, corrID)
	}
	return respond(http.StatusOK, statusResponse{Status: "ok", Processed: &processed}, corrID)
}

func errorCode(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return string(ucErr.Code)
	}
	return string(usecase.ErrorInternal)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func respond(status int, body any, corrID string) Response {
	buf, err := json.Marshal(body)
	if err != nil {
		// Fallback shape; body structs here never actually fail to marshal.
		buf = []byte(`{"status":"error","error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":     "application/json",
			"X-Correlation-Id": corrID,
		},
		Body: string(buf),
	}
}
