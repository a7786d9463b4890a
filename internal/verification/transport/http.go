// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/sourceproof/internal/observability/metrics"
	"github.com/pendergraft/sourceproof/internal/storage"
	"github.com/pendergraft/sourceproof/internal/verification/domain"
)

// maxRequestBody caps how much compiled bytecode one request may carry.
const maxRequestBody = 32 << 20 // 32 MiB

// AuditStore is the slice of the storage layer the list endpoints need.
type AuditStore interface {
	GetVerification(ctx context.Context, id string) (*storage.Verification, error)
	ListVerifications(ctx context.Context, filter storage.VerificationFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Verification], error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc   domain.Service
	store AuditStore
}

// NewHandler creates a new verification HTTP handler. store may be nil when
// no audit log is configured; the list endpoints then return 404.
func NewHandler(svc domain.Service, store AuditStore) *Handler {
	return &Handler{svc: svc, store: store}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Get("/verifications", h.handleListVerifications)
	r.Get("/verifications/{id}", h.handleGetVerification)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	pkg, err := req.Package.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PACKAGE", err.Error())
		return
	}

	verifyErr, ok := h.dispatch(r.Context(), w, &req, pkg)
	if !ok {
		return
	}

	writeResult(w, pkg, verifyErr)
}

// dispatch selects the engine operation from the request shape and runs it.
// The second return is false when a response has already been written.
func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, req *VerifyRequest, pkg *domain.CompiledPackage) (error, bool) {
	start := time.Now()

	if req.RootAddress != "" {
		addr, err := domain.ParseAddress(req.RootAddress)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid root_address: "+err.Error())
			return nil, false
		}
		if req.VerifyDeps {
			verifyErr := h.svc.VerifyPackageRootAndDeps(ctx, pkg, addr)
			metrics.VerificationRequest("root_and_deps", domain.ErrorKind(verifyErr), time.Since(start))
			return verifyErr, true
		}
		verifyErr := h.svc.VerifyPackageRoot(ctx, pkg, addr)
		metrics.VerificationRequest("root", domain.ErrorKind(verifyErr), time.Since(start))
		return verifyErr, true
	}

	var mode domain.SourceMode
	switch req.RootMode {
	case "", "skip":
		mode = domain.SourceModeSkip
	case "verify":
		mode = domain.SourceModeVerify
	default:
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "root_mode must be \"skip\" or \"verify\"")
		return nil, false
	}

	if mode == domain.SourceModeSkip && req.VerifyDeps {
		verifyErr := h.svc.VerifyPackageDeps(ctx, pkg)
		metrics.VerificationRequest("deps", domain.ErrorKind(verifyErr), time.Since(start))
		return verifyErr, true
	}

	verifyErr := h.svc.VerifyPackage(ctx, pkg, req.VerifyDeps, mode)
	metrics.VerificationRequest("dispatch", domain.ErrorKind(verifyErr), time.Since(start))
	return verifyErr, true
}

// writeResult maps a verification outcome onto the response. Invalid inputs
// and transport failures get error statuses; a completed comparison is a 200
// whether or not the bytecode matched.
func writeResult(w http.ResponseWriter, pkg *domain.CompiledPackage, err error) {
	var invalidModule *domain.InvalidModuleError
	var readErr *domain.ObjectReadError
	switch {
	case errors.Is(err, domain.ErrZeroTargetAddress):
		writeError(w, http.StatusBadRequest, "ZERO_TARGET_ADDRESS", err.Error())
		return
	case errors.As(err, &invalidModule):
		writeError(w, http.StatusBadRequest, "INVALID_MODULE", err.Error())
		return
	case errors.As(err, &readErr):
		writeError(w, http.StatusBadGateway, "LEDGER_UNAVAILABLE", err.Error())
		return
	}

	resp := VerifyResponse{
		Package:     pkg.Name,
		Fingerprint: pkg.Fingerprint(),
		Verified:    err == nil,
		Result:      domain.ErrorKind(err),
	}
	if err != nil {
		resp.Message = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Audit log not configured")
		return
	}

	filter := storage.VerificationFilter{
		Package: r.URL.Query().Get("package"),
		Address: r.URL.Query().Get("address"),
		Result:  r.URL.Query().Get("result"),
	}
	pagination := storage.PaginationParams{
		Cursor: r.URL.Query().Get("cursor"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 500")
			return
		}
		pagination.Limit = n
	}

	result, err := h.store.ListVerifications(r.Context(), filter, pagination)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list verifications")
		return
	}

	resp := ListVerificationsResponse{
		Verifications: make([]VerificationSummary, 0, len(result.Data)),
		HasMore:       result.HasMore,
		NextCursor:    result.NextCursor,
	}
	for _, v := range result.Data {
		resp.Verifications = append(resp.Verifications, toSummary(v))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Audit log not configured")
		return
	}

	id := chi.URLParam(r, "id")
	v, err := h.store.GetVerification(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Verification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load verification")
		return
	}

	writeJSON(w, http.StatusOK, toSummary(*v))
}

func toSummary(v storage.Verification) VerificationSummary {
	return VerificationSummary{
		ID:          v.ID,
		Package:     v.Package,
		Fingerprint: v.Fingerprint,
		Address:     v.Address,
		Operation:   v.Operation,
		Result:      v.Result,
		Detail:      v.Detail,
		DurationMS:  v.DurationMS,
		CreatedAt:   v.CreatedAt,
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
