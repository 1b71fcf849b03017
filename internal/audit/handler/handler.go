// Package handler exposes the audit and arbitration operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"safemint/internal/audit/models"
	"safemint/internal/audit/service"
	regmodels "safemint/internal/registry/models"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/httputil"
	"safemint/pkg/requestcontext"
)

// Handler serves audit decisions, challenges, arbitration rulings, and
// reward claims.
type Handler struct {
	audits *service.Service
	logger *slog.Logger
}

func New(audits *service.Service, logger *slog.Logger) *Handler {
	return &Handler{audits: audits, logger: logger}
}

// Register mounts authenticated audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects/{name}/audit", h.HandleAudit)
	r.Post("/projects/{name}/challenge", h.HandleChallenge)
	r.Post("/projects/{name}/arbitrate", h.HandleArbitrate)
	r.Post("/projects/{name}/claim", h.HandleClaim)
	r.Get("/fee-records/{id}", h.HandleFeeRecord)
	r.Get("/audit/prices", h.HandleGetPrices)
}

// RegisterAdmin mounts the fee-schedule endpoints; the caller wraps them in
// the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/audit/price", h.HandleSetAuditPrice)
	r.Put("/admin/audit/challenge-price", h.HandleSetChallengePrice)
}

type auditRequest struct {
	Decision string `json:"decision"`
	Comments string `json:"comments"`
}

type challengeRequest struct {
	Comments string `json:"comments"`
}

type arbitrateRequest struct {
	Decision string `json:"decision"`
}

type feeRecordResponse struct {
	ProjectID    uint64 `json:"project_id"`
	Auditor      string `json:"auditor"`
	Value        string `json:"value"`
	Challenger   string `json:"challenger,omitempty"`
	ChallengeFee string `json:"challenge_fee,omitempty"`
	Arbitrated   bool   `json:"arbitrated"`
	Claimed      bool   `json:"claimed"`
}

func toFeeRecordResponse(r *models.FeeRecord) feeRecordResponse {
	resp := feeRecordResponse{
		ProjectID:  r.ProjectID,
		Auditor:    r.Auditor.String(),
		Value:      id.AmountString(r.Value),
		Challenger: r.Challenger.String(),
		Arbitrated: r.Arbitrated,
		Claimed:    r.Claimed,
	}
	if r.ChallengeFee != nil {
		resp.ChallengeFee = id.AmountString(r.ChallengeFee)
	}
	return resp
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	name := chi.URLParam(r, "name")

	req, ok := httputil.DecodeAndPrepare[auditRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, ok := parseDecision(req.Decision)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "status error"))
		return
	}

	record, err := h.audits.Audit(ctx, caller, name, req.Comments, decision)
	if err != nil {
		h.logger.WarnContext(ctx, "audit failed",
			"request_id", requestID,
			"project", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeeRecordResponse(record))
}

func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	name := chi.URLParam(r, "name")

	req, ok := httputil.DecodeAndPrepare[challengeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.audits.Challenge(ctx, caller, name, req.Comments)
	if err != nil {
		h.logger.WarnContext(ctx, "challenge failed",
			"request_id", requestID,
			"project", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeeRecordResponse(record))
}

func (h *Handler) HandleArbitrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	name := chi.URLParam(r, "name")

	req, ok := httputil.DecodeAndPrepare[arbitrateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, ok := parseDecision(req.Decision)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "status error"))
		return
	}

	record, err := h.audits.Arbitrate(ctx, caller, name, decision)
	if err != nil {
		h.logger.WarnContext(ctx, "arbitration failed",
			"request_id", requestID,
			"project", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeeRecordResponse(record))
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	name := chi.URLParam(r, "name")

	total, err := h.audits.ClaimAuditReward(ctx, caller, name)
	if err != nil {
		h.logger.WarnContext(ctx, "reward claim failed",
			"request_id", requestID,
			"project", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"project": name,
		"amount":  id.AmountString(total),
	})
}

func (h *Handler) HandleFeeRecord(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed project id"))
		return
	}
	record, err := h.audits.FeeRecord(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeeRecordResponse(record))
}

func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"audit_price":     id.AmountString(h.audits.AuditPrice()),
		"challenge_price": id.AmountString(h.audits.ChallengePrice()),
	})
}

type setPriceRequest struct {
	Price string `json:"price"`
}

func (h *Handler) HandleSetAuditPrice(w http.ResponseWriter, r *http.Request) {
	h.handleSetPrice(w, r, h.audits.SetAuditPrice)
}

func (h *Handler) HandleSetChallengePrice(w http.ResponseWriter, r *http.Request) {
	h.handleSetPrice(w, r, h.audits.SetChallengePrice)
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, price *big.Int) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[setPriceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	price, ok := id.ParseAmount(req.Price)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed amount"))
		return
	}

	if err := set(ctx, price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}

// parseDecision accepts the numeric status values and their names for the
// two legal decisions.
func parseDecision(raw string) (regmodels.Status, bool) {
	switch raw {
	case "1", "passed":
		return regmodels.StatusPassed, true
	case "2", "reject", "rejected":
		return regmodels.StatusRejected, true
	default:
		return 0, false
	}
}
