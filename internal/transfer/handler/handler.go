// Package handler exposes the transfer workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civreg/internal/platform/metrics"
	"civreg/internal/platform/middleware"
	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
)

const defaultRequestTimeout = 30 * time.Second

// maxListLimit caps one page of office history.
const maxListLimit = 200

// Service defines the interface for transfer workflow operations.
type Service interface {
	RequestTransfer(ctx context.Context, familyID id.FamilyID, toOffice id.OfficeID, reason, notes string) (id.TransferID, error)
	ApproveTransfer(ctx context.Context, transferID id.TransferID, note string) error
	RejectTransfer(ctx context.Context, transferID id.TransferID, reason string) error
	CancelTransfer(ctx context.Context, transferID id.TransferID, note string) error
	CompleteTransfer(ctx context.Context, transferID id.TransferID, note string) error
	GetTransfer(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error)
	ListOfficeTransfers(ctx context.Context, officeID id.OfficeID, filter models.ListFilter) ([]*models.TransferRequest, error)
}

// Handler handles transfer workflow endpoints.
type Handler struct {
	logger    *slog.Logger
	transfers Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a transfer Handler.
func New(transfers Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		transfers: transfers,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the transfer routes with the full middleware chain.
func (h *Handler) Register(r chi.Router) {
	transferRouter := chi.NewRouter()
	transferRouter.Use(middleware.Recovery(h.logger))
	transferRouter.Use(middleware.RequestID)
	transferRouter.Use(middleware.RequestTime)
	transferRouter.Use(middleware.Logger(h.logger))
	transferRouter.Use(middleware.Timeout(defaultRequestTimeout))
	transferRouter.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		transferRouter.Use(middleware.Latency(h.metrics))
	}
	transferRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	transferRouter.Post("/transfers", h.handleRequestTransfer)
	transferRouter.Get("/transfers/{transferID}", h.handleGetTransfer)
	transferRouter.Post("/transfers/{transferID}/approve", h.handleApproveTransfer)
	transferRouter.Post("/transfers/{transferID}/reject", h.handleRejectTransfer)
	transferRouter.Post("/transfers/{transferID}/cancel", h.handleCancelTransfer)
	transferRouter.Post("/transfers/{transferID}/complete", h.handleCompleteTransfer)
	transferRouter.Get("/offices/{officeID}/transfers", h.handleListOfficeTransfers)

	r.Mount("/", transferRouter)
}

func (h *Handler) handleRequestTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTransferRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, requiredBody(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	transferID, err := h.transfers.RequestTransfer(ctx, req.ParsedFamilyID(), req.ParsedToOffice(), req.Reason, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, "request transfer", err)
		return
	}

	created, err := h.transfers.GetTransfer(ctx, transferID)
	if err != nil {
		// The row committed; return the id even if the read-back failed.
		h.logger.WarnContext(ctx, "read-back after create failed",
			"transfer_id", transferID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusCreated, map[string]string{"transfer_id": transferID.String()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, r, "get transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "approve transfer", func(ctx context.Context, transferID id.TransferID, note string) error {
		return h.transfers.ApproveTransfer(ctx, transferID, note)
	})
}

func (h *Handler) handleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "cancel transfer", func(ctx context.Context, transferID id.TransferID, note string) error {
		return h.transfers.CancelTransfer(ctx, transferID, note)
	})
}

func (h *Handler) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "complete transfer", func(ctx context.Context, transferID id.TransferID, note string) error {
		return h.transfers.CompleteTransfer(ctx, transferID, note)
	})
}

// handleTransition covers the three note-carrying transitions; reject differs
// enough (mandatory reason) to keep its own handler.
func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, id.TransferID, string) error) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req ActionRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := apply(r.Context(), transferID, req.Note); err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}

	transfer, err := h.transfers.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleRejectTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req RejectRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, requiredBody(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.transfers.RejectTransfer(r.Context(), transferID, req.Reason); err != nil {
		h.writeServiceError(w, r, "reject transfer", err)
		return
	}

	transfer, err := h.transfers.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, r, "reject transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleListOfficeTransfers(w http.ResponseWriter, r *http.Request) {
	officeID, err := id.ParseOfficeID(chi.URLParam(r, "officeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfers, err := h.transfers.ListOfficeTransfers(r.Context(), officeID, filter)
	if err != nil {
		h.writeServiceError(w, r, "list office transfers", err)
		return
	}
	if transfers == nil {
		transfers = []*models.TransferRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	var filter models.ListFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "unknown status filter")
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(c-'0')
		if n > 1<<20 {
			return 0, errors.New("out of range")
		}
	}
	if n == 0 {
		return 0, errors.New("zero")
	}
	return n, nil
}

var errEmptyBody = errors.New("empty body")

// requiredBody maps a missing body onto the validation taxonomy for
// endpoints where the body is mandatory.
func requiredBody(err error) error {
	if errors.Is(err, errEmptyBody) {
		return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
	}
	return err
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		h.logger.ErrorContext(ctx, "operation failed",
			"op", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "operation rejected",
			"op", op,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
