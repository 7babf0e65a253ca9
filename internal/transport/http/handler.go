package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quotaledger/internal/model"
	"quotaledger/internal/service"
)

type Handler struct {
	svc service.Engine
}

func NewHandler(svc service.Engine) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /accounts", h.CreateAccount)
	mux.HandleFunc("POST /accounts/{id}/tier", h.ChangeTier)
	mux.HandleFunc("GET /accounts/{id}/pools", h.GetPools)
	mux.HandleFunc("GET /balance", h.GetBalance)

	mux.HandleFunc("POST /debit", h.Debit)
	mux.HandleFunc("POST /credit", h.Credit)
	mux.HandleFunc("POST /transfer", h.Transfer)

	mux.HandleFunc("POST /cohorts", h.CreateCohort)
	mux.HandleFunc("POST /cohorts/{id}/open", h.OpenCohort)
	mux.HandleFunc("POST /cohorts/{id}/close", h.ForceCloseCohort)
	mux.HandleFunc("POST /cohorts/consume", h.ConsumeSlot)
	mux.HandleFunc("POST /cohorts/{id}/revoke", h.RevokeMembership)

	mux.HandleFunc("POST /entitlements/consume", h.ConsumeEntitlement)
	mux.HandleFunc("POST /entitlements/reverse", h.ReverseEntitlement)

	mux.HandleFunc("POST /reset/run", h.RunReset)

	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	acct, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, acct)
}

func (h *Handler) ChangeTier(w http.ResponseWriter, r *http.Request) {
	var req model.ChangeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	if err := h.svc.ChangeTier(r.Context(), r.PathValue("id"), req.Tier, req.Level); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) GetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.svc.GetPools(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accID := r.URL.Query().Get("account_id")
	kind := model.PoolKind(r.URL.Query().Get("pool"))
	if accID == "" || !model.ValidPoolKind(kind) {
		h.respondError(w, http.StatusBadRequest, "MISSING_PARAMS")
		return
	}
	bal, err := h.svc.GetBalance(r.Context(), accID, kind)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"balance": bal})
}

func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	var req model.DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	res, err := h.svc.Debit(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req model.CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	res, err := h.svc.Credit(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	res, err := h.svc.Transfer(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) CreateCohort(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	cohort, err := h.svc.CreateCohort(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, cohort)
}

func (h *Handler) OpenCohort(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.OpenCohort(r.Context(), r.PathValue("id")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "open"})
}

func (h *Handler) ForceCloseCohort(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ForceCloseCohort(r.Context(), r.PathValue("id")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) ConsumeSlot(w http.ResponseWriter, r *http.Request) {
	var req model.ConsumeSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	grant, err := h.svc.ConsumeSlot(r.Context(), req.CohortID, req.AccountID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, grant)
}

func (h *Handler) RevokeMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	if err := h.svc.RevokeMembership(r.Context(), r.PathValue("id"), req.AccountID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) ConsumeEntitlement(w http.ResponseWriter, r *http.Request) {
	var req model.EntitlementConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	res, err := h.svc.ConsumeEntitlement(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) ReverseEntitlement(w http.ResponseWriter, r *http.Request) {
	var req model.EntitlementConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}
	res, err := h.svc.ReverseEntitlement(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// RunReset triggers a period reset pass on demand, for deployments that
// drive the cadence from an external scheduler instead of the in-process
// cron.
func (h *Handler) RunReset(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ResetDuePools(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, summary)
}

// statusForError maps the domain taxonomy onto HTTP statuses. Denials that
// the caller can act on are 4xx; only transient storage trouble is 503.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidAmount), errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrPoolNotFound),
		errors.Is(err, model.ErrAccountNotFound),
		errors.Is(err, model.ErrCohortNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAccountExists),
		errors.Is(err, model.ErrAlreadyMember),
		errors.Is(err, model.ErrCohortCityTaken),
		errors.Is(err, model.ErrCohortNotOpen),
		errors.Is(err, model.ErrCohortFull),
		errors.Is(err, model.ErrLedgerPeriodMismatch):
		return http.StatusConflict
	case errors.Is(err, model.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	h.respondError(w, statusForError(err), model.ErrorCode(err))
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code string) {
	h.respondJSON(w, status, map[string]string{"error": code})
}
