package jwttoken

import (
	"safemint/internal/platform/middleware"
)

// MiddlewareAdapter bridges JWTService to the middleware's validator interface
// so the transport layer does not import jwt types directly.
type MiddlewareAdapter struct {
	service *JWTService
}

func NewMiddlewareAdapter(service *JWTService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Account: claims.Account,
		Admin:   claims.Admin,
	}, nil
}
