package auth

import models "folio/internal/domain/models/content"

// Verifier resolves a bearer token to the actor that every mutating operation is attributed to.
// The content engine treats the actor as opaque; only this package knows how it is established.
type Verifier interface {
	// VerifyToken validates a token string and returns the actor it identifies.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (models.Actor, error)

	// Close releases any resources held by the verifier (e.g., HTTP connections for JWKS).
	Close() error
}
