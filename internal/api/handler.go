package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/insights"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/auth"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/provider"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/symbols"
)

// HealthChecker reports whether the cache backend is reachable.
// *cache.Manager satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Handler holds dependencies for the gateway's HTTP handlers.
type Handler struct {
	service  *insights.Service
	health   HealthChecker
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(service *insights.Service, health HealthChecker, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		health:   health,
		validate: validator.New(),
		logger:   logger,
	}
}

// InsightRequest is the request body for POST /v1/insights.
type InsightRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

// InsightResponse is the response shape shared by both insight endpoints.
type InsightResponse struct {
	RequestID string           `json:"requestId"`
	Symbol    string           `json:"symbol"`
	Data      provider.Insight `json:"data"`
	Cached    bool             `json:"cached"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// HealthResponse is the response for GET /v1/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// errorResponse is the error envelope for every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// CreateInsight handles POST /v1/insights.
func (h *Handler) CreateInsight(w http.ResponseWriter, r *http.Request) {
	var req InsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	result, err := h.service.Create(r.Context(), req.Symbol)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(result))
}

// GetInsight handles GET /v1/insights/{requestID}.
func (h *Handler) GetInsight(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	result, err := h.service.GetByID(r.Context(), requestID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultToResponse(result))
}

// Health handles GET /v1/health. The gateway reports degraded when the
// cache backend is unreachable but keeps serving either way.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !h.health.HealthCheck(r.Context()) {
		status = "degraded"
		h.logger.Warn().Msg("Health check: cache backend not available")
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError converts an orchestrator failure into its transport
// status. This is the single place error kinds cross the HTTP boundary.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var invalidSymbol *symbols.InvalidSymbolError
	if errors.As(err, &invalidSymbol) {
		writeError(w, http.StatusBadRequest, invalidSymbol.Error())
		return
	}

	if errors.Is(err, insights.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No cached insights found for the given request_id")
		return
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case provider.KindInvalid:
			status := provErr.StatusCode
			if status == 0 {
				status = http.StatusBadRequest
			}
			writeError(w, status, "Upstream provider rejected the request")
		case provider.KindNotFound:
			writeError(w, http.StatusNotFound, "Symbol not found upstream")
		case provider.KindAuthFailed, provider.KindUnavailable:
			// Provider credential failures are deliberately masked as a
			// generic unavailability.
			writeError(w, http.StatusServiceUnavailable, "Upstream provider is currently unavailable")
		case provider.KindTimeout:
			writeError(w, http.StatusGatewayTimeout, "Upstream provider request timed out")
		case provider.KindParseFailure:
			writeError(w, http.StatusInternalServerError, "Invalid data format from upstream provider")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.logger.Error().Err(err).Msg("Unhandled service error")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// unauthenticatedDetail strips the sentinel prefix off an auth failure so
// the client sees only the reason.
func unauthenticatedDetail(err error) string {
	detail := strings.TrimPrefix(err.Error(), auth.ErrUnauthenticated.Error()+": ")
	if detail == "" {
		return "Unauthenticated"
	}
	return detail
}

func resultToResponse(result *insights.Result) InsightResponse {
	return InsightResponse{
		RequestID: result.RequestID,
		Symbol:    result.Symbol,
		Data:      result.Data,
		Cached:    result.Cached,
		FetchedAt: result.FetchedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
