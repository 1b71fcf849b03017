package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"safemint/internal/token"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/httputil"
	"safemint/pkg/requestcontext"
)

// Minter is the supply-creation surface of ledger implementations that
// support it. Bootstrap only.
type Minter interface {
	Mint(account id.Account, amount *big.Int)
}

// Handler exposes the token collaborator over HTTP: balances, allowances, and
// the approve call owners use to pre-authorize fee pulls.
type Handler struct {
	ledger token.Ledger
	minter Minter
	logger *slog.Logger
}

func New(ledger token.Ledger, minter Minter, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, minter: minter, logger: logger}
}

// Register mounts token endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/token/balance/{account}", h.HandleBalance)
	r.Get("/token/allowance/{owner}/{spender}", h.HandleAllowance)
	r.Post("/token/approve", h.HandleApprove)
	r.Post("/token/transfer", h.HandleTransfer)
}

// RegisterAdmin mounts the mint endpoint; the caller wraps it in the admin
// middleware. No-op when the ledger cannot mint.
func (h *Handler) RegisterAdmin(r chi.Router) {
	if h.minter == nil {
		return
	}
	r.Post("/admin/token/mint", h.HandleMint)
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[mintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	amount, ok := id.ParseAmount(req.Amount)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed amount"))
		return
	}

	h.minter.Mint(id.Account(req.Account), amount)

	h.logger.InfoContext(ctx, "tokens minted",
		"request_id", requestID,
		"account", req.Account,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, nil)
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account := id.Account(chi.URLParam(r, "account"))
	balance, err := h.ledger.BalanceOf(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Account: account.String(),
		Amount:  id.AmountString(balance),
	})
}

func (h *Handler) HandleAllowance(w http.ResponseWriter, r *http.Request) {
	owner := id.Account(chi.URLParam(r, "owner"))
	spender := id.Account(chi.URLParam(r, "spender"))
	allowance, err := h.ledger.Allowance(r.Context(), owner, spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Account: owner.String(),
		Amount:  id.AmountString(allowance),
	})
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[approveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	amount, ok := id.ParseAmount(req.Amount)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed amount"))
		return
	}

	if err := h.ledger.Approve(ctx, caller, id.Account(req.Spender), amount); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "allowance approved",
		"request_id", requestID,
		"owner", caller,
		"spender", req.Spender,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[transferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	amount, ok := id.ParseAmount(req.Amount)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed amount"))
		return
	}

	if err := h.ledger.Transfer(ctx, caller, id.Account(req.To), amount); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "tokens transferred",
		"request_id", requestID,
		"from", caller,
		"to", req.To,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, nil)
}
