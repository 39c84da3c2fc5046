// Package handler is the thin HTTP layer over the registry service. It owns
// transport concerns only: routing, decoding, error translation, and the
// boundary decision to lowercase name path parameters (the core keys
// verbatim strings and performs no normalization itself).
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"namereg/internal/platform/metrics"
	"namereg/internal/platform/middleware"
	"namereg/internal/registry/models"
	"namereg/pkg/domain"
	dErrors "namereg/pkg/domain-errors"
	"namereg/pkg/requestcontext"
)

// Service defines the registry operations the handler exposes.
type Service interface {
	IsAvailable(ctx context.Context, name string) (bool, error)
	OwnerOf(ctx context.Context, name string) (domain.Identity, error)
	ExpiresAt(ctx context.Context, name string) (time.Time, error)
	GetRecord(ctx context.Context, name string) (string, error)
	OwnedCount(ctx context.Context, owner domain.Identity) (uint64, error)
	Params(ctx context.Context) (*models.Params, error)

	Register(ctx context.Context, name string) (*models.NameRecord, error)
	Renew(ctx context.Context, name string) (*models.NameRecord, error)
	SetRecord(ctx context.Context, name, record string) error
	Transfer(ctx context.Context, name string, to domain.Identity) error
	UpdateParams(ctx context.Context, minBalance uint64, duration time.Duration) error
	TransferAdministrator(ctx context.Context, newAdmin domain.Identity) error
}

// Handler handles registry endpoints.
type Handler struct {
	registry  Service
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a registry Handler.
func New(registry Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{registry: registry, logger: logger, metrics: m, validator: validator}
}

// Register mounts the registry routes.
func (h *Handler) Register(r chi.Router) {
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))
	r.Use(middleware.Timeout(30 * time.Second))

	// Reads are public.
	r.Get("/names/{name}", h.handleGetName)
	r.Get("/owners/{identity}/names/count", h.handleOwnedCount)
	r.Get("/registry/params", h.handleGetParams)

	// Mutations require an authenticated caller.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/names/{name}/register", h.handleRegister)
		r.Post("/names/{name}/renew", h.handleRenew)
		r.Put("/names/{name}/record", h.handleSetRecord)
		r.Post("/names/{name}/transfer", h.handleTransfer)
		r.Put("/registry/params", h.handleUpdateParams)
		r.Post("/registry/admin/transfer", h.handleTransferAdmin)
	})
}

// nameParam lowercases the name path parameter. This is the normalization
// boundary: clients get case-insensitive names, the core never rewrites keys.
func nameParam(r *http.Request) string {
	return strings.ToLower(chi.URLParam(r, "name"))
}

type nameView struct {
	Name      string     `json:"name"`
	Available bool       `json:"available"`
	Owner     string     `json:"owner,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Record    string     `json:"record"`
}

func (h *Handler) handleGetName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := nameParam(r)

	available, err := h.registry.IsAvailable(ctx, name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	owner, err := h.registry.OwnerOf(ctx, name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	expiry, err := h.registry.ExpiresAt(ctx, name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	record, err := h.registry.GetRecord(ctx, name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	view := nameView{Name: name, Available: available, Owner: owner.String(), Record: record}
	if !expiry.IsZero() {
		view.ExpiresAt = &expiry
	}
	h.writeJSON(w, http.StatusOK, view)
}

type registrationResponse struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.registry.Register(ctx, nameParam(r))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, registrationResponse{
		Name:      rec.Name,
		Owner:     rec.Owner.String(),
		ExpiresAt: rec.ExpiresAt,
	})
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.registry.Renew(ctx, nameParam(r))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, registrationResponse{
		Name:      rec.Name,
		Owner:     rec.Owner.String(),
		ExpiresAt: rec.ExpiresAt,
	})
}

type setRecordRequest struct {
	Record string `json:"record"`
}

func (h *Handler) handleSetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.registry.SetRecord(ctx, nameParam(r), req.Record); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.registry.Transfer(ctx, nameParam(r), domain.Identity(strings.TrimSpace(req.To))); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOwnedCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := domain.Identity(chi.URLParam(r, "identity"))
	count, err := h.registry.OwnedCount(ctx, owner)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"owner": owner.String(),
		"count": count,
	})
}

type paramsView struct {
	TokenAddress    string `json:"token_address"`
	MinBalance      uint64 `json:"min_balance"`
	DurationSeconds int64  `json:"duration_seconds"`
	Label           string `json:"label"`
	Admin           string `json:"admin"`
}

func (h *Handler) handleGetParams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.registry.Params(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paramsView{
		TokenAddress:    p.TokenAddress,
		MinBalance:      p.MinBalance,
		DurationSeconds: int64(p.Duration / time.Second),
		Label:           p.Label,
		Admin:           p.Admin.String(),
	})
}

type updateParamsRequest struct {
	MinBalance      uint64 `json:"min_balance"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func (h *Handler) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := h.registry.UpdateParams(ctx, req.MinBalance, duration); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.registry.TransferAdministrator(ctx, domain.Identity(strings.TrimSpace(req.To))); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := httpStatus(code)
	if status >= 500 {
		h.logger.ErrorContext(ctx, "registry operation failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}

func httpStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeEmptyName, dErrors.CodeZeroTarget, dErrors.CodeInvalidDuration,
		dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNameUnavailable, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInsufficientBalance, dErrors.CodeNotAuthorized, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
