package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"safemint/internal/roles"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/httputil"
	"safemint/pkg/requestcontext"
)

// Handler exposes role administration. Mount behind the admin middleware;
// grants are the trust anchor for the whole audit pipeline.
type Handler struct {
	store  roles.Store
	logger *slog.Logger
}

func New(store roles.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterAdmin mounts grant/revoke endpoints on an admin-gated router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/roles/grant", h.HandleGrant)
	r.Post("/admin/roles/revoke", h.HandleRevoke)
}

// Register mounts the public read endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/roles/{role}/{account}", h.HandleHasRole)
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type hasRoleResponse struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	Granted bool   `json:"granted"`
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "role granted", h.store.GrantRole)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "role revoked", h.store.RevokeRole)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(ctx context.Context, role roles.Role, account id.Account) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[roleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Role == "" || req.Account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "role and account are required"))
		return
	}

	if err := op(ctx, roles.Role(req.Role), id.Account(req.Account)); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "role store update failed"))
		return
	}

	h.logger.InfoContext(ctx, action,
		"request_id", requestID,
		"role", req.Role,
		"account", req.Account,
		"admin", requestcontext.Caller(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) HandleHasRole(w http.ResponseWriter, r *http.Request) {
	role := roles.Role(chi.URLParam(r, "role"))
	account := id.Account(chi.URLParam(r, "account"))

	granted, err := h.store.HasRole(r.Context(), role, account)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, hasRoleResponse{
		Role:    string(role),
		Account: account.String(),
		Granted: granted,
	})
}
