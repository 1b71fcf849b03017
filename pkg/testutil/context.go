package testutil

import (
	"net/http"

	id "safemint/pkg/domain"
	"safemint/pkg/requestcontext"
)

// WithCaller binds a ledger account to the request context, simulating what
// the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, account string) *http.Request {
	ctx := requestcontext.WithCaller(req.Context(), id.Account(account))
	return req.WithContext(ctx)
}

// WithAdmin marks the request context as carrying the admin claim. Implies a
// caller has already been bound.
func WithAdmin(req *http.Request) *http.Request {
	ctx := requestcontext.WithAdmin(req.Context(), true)
	return req.WithContext(ctx)
}

// WithRequestID binds a correlation ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}
