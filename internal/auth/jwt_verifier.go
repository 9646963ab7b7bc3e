package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
)

// Claims is the token payload accepted by the engine. Only the subject is required.
type Claims struct {
	jwt.RegisteredClaims
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

// Actor maps the claims onto the engine's identity
func (c *Claims) Actor() models.Actor {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	if name == "" {
		name = c.Email
	}
	if name == "" {
		name = c.Subject
	}
	return models.Actor{ID: c.Subject, Name: name}
}

// JWTVerifier implements Verifier using keys published at a JWKS endpoint.
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from jwksURL.
// The JWKS keys are cached and automatically refreshed based on HTTP cache headers.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return NewJWTVerifierWithKeyfunc(jwks.Keyfunc, logger), nil
}

// NewJWTVerifierWithKeyfunc creates a verifier backed by a fixed key lookup
func NewJWTVerifierWithKeyfunc(kf jwt.Keyfunc, logger *slog.Logger) *JWTVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTVerifier{keyfunc: kf, logger: logger}
}

// VerifyToken validates a JWT and returns the actor named by its claims.
func (v *JWTVerifier) VerifyToken(tokenString string) (models.Actor, error) {
	// Prevent algorithm confusion attacks - allow only RS256 or ES256
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token parse failed", "error", err)
		return models.Actor{}, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		v.logger.Error("failed to extract claims from token")
		return models.Actor{}, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return models.Actor{}, domain.ErrUnauthorized
	}

	return claims.Actor(), nil
}

// Close is a no-op; keyfunc v3 manages its own refresh goroutine via the context it was given.
func (v *JWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}

// StaticVerifier accepts every token and attributes requests to one fixed actor.
// Used when authentication is disabled in local development.
type StaticVerifier struct {
	Actor models.Actor
}

// VerifyToken ignores the token
func (v StaticVerifier) VerifyToken(string) (models.Actor, error) {
	return v.Actor, nil
}

// Close implements Verifier
func (v StaticVerifier) Close() error { return nil }
