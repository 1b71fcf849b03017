// Package handler issues ledger access tokens.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safemint/internal/jwttoken"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/httputil"
	"safemint/pkg/requestcontext"
)

const defaultTokenTTL = time.Hour

// Handler exposes token issuance. The issue endpoint is a deployment
// bootstrap surface; production deployments front it with their own identity
// provider.
type Handler struct {
	jwt    *jwttoken.JWTService
	logger *slog.Logger
}

func New(jwt *jwttoken.JWTService, logger *slog.Logger) *Handler {
	return &Handler{jwt: jwt, logger: logger}
}

// Register mounts the public issue endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.HandleIssueToken)
}

type issueTokenRequest struct {
	Account string `json:"account"`
	Admin   bool   `json:"admin"`
}

type issueTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[issueTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account is required"))
		return
	}

	token, err := h.jwt.GenerateAccessToken(id.Account(req.Account), req.Admin, defaultTokenTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token"))
		return
	}

	h.logger.InfoContext(ctx, "access token issued",
		"request_id", requestID,
		"account", req.Account,
		"admin", req.Admin,
	)
	httputil.WriteJSON(w, http.StatusOK, issueTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(defaultTokenTTL.Seconds()),
	})
}
