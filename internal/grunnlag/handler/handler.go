package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/httputil"
	liststrings "grunnlag/pkg/platform/strings"
	"grunnlag/pkg/requestcontext"
)

// ProjectionService answers projection queries.
type ProjectionService interface {
	ProjectionFor(ctx context.Context, caseID domain.CaseID, applicant domain.PersonID) (models.Grunnlag, error)
	ProjectionForCase(ctx context.Context, caseID domain.CaseID) (models.Grunnlag, error)
}

// HistoryReader returns the full ledger of a case.
type HistoryReader interface {
	EventsFor(ctx context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error)
}

// Handler exposes read-only grunnlag endpoints.
type Handler struct {
	projections ProjectionService
	history     HistoryReader
	logger      *slog.Logger
}

// New constructs a grunnlag handler with its dependencies.
func New(projections ProjectionService, history HistoryReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		projections: projections,
		history:     history,
		logger:      logger,
	}
}

// Register mounts grunnlag endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/saker/{caseID}/grunnlag", h.HandleProjection)
	r.Get("/v1/saker/{caseID}/opplysninger", h.HandleHistory)
}

// HandleProjection handles GET /v1/saker/{caseID}/grunnlag. The optional
// applicant query parameter overrides the applicant named by the roster.
func (h *Handler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var g models.Grunnlag
	if raw := r.URL.Query().Get("applicant"); raw != "" {
		applicant, perr := domain.ParsePersonID(raw)
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		g, err = h.projections.ProjectionFor(ctx, caseID, applicant)
	} else {
		g, err = h.projections.ProjectionForCase(ctx, caseID)
	}
	if err != nil {
		h.logFailure(ctx, "projection query failed", caseID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

type historyResponse struct {
	CaseID domain.CaseID      `json:"case_id"`
	Events []models.FactEvent `json:"events"`
}

// HandleHistory handles GET /v1/saker/{caseID}/opplysninger?type=NAME&type=...
// Type filters are case-insensitive and may also be comma separated.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	types := liststrings.Normalize[models.FactType](r.URL.Query()["type"], strings.ToUpper)
	events, err := h.history.EventsFor(ctx, caseID, types...)
	if err != nil {
		h.logFailure(ctx, "history query failed", caseID, err)
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []models.FactEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{CaseID: caseID, Events: events})
}

func (h *Handler) logFailure(ctx context.Context, msg string, caseID domain.CaseID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"case_id", caseID,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
