package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/auth"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	"folio/internal/httputil"
	"folio/internal/metrics"
)

type fakeVerifier map[string]models.Actor

func (f fakeVerifier) VerifyToken(token string) (models.Actor, error) {
	actor, ok := f[token]
	if !ok {
		return models.Actor{}, domain.ErrUnauthorized
	}
	return actor, nil
}

func (f fakeVerifier) Close() error { return nil }

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, httputil.GetActor(r))
	})
}

func TestAuthMiddleware(t *testing.T) {
	ada := models.Actor{ID: "ada", Name: "Ada"}
	h := AuthMiddleware(fakeVerifier{"good": ada})(echoActor())

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"valid token", "/api/nodes/1", "Bearer good", http.StatusOK},
		{"lowercase scheme", "/api/nodes/1", "bearer good", http.StatusOK},
		{"missing header", "/api/nodes/1", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/nodes/1", "Basic good", http.StatusUnauthorized},
		{"unknown token", "/api/nodes/1", "Bearer bad", http.StatusUnauthorized},
		{"public path", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthMiddleware_StaticVerifierNeedsNoToken(t *testing.T) {
	dev := models.Actor{ID: "dev", Name: "Developer"}
	h := AuthMiddleware(auth.StaticVerifier{Actor: dev})(echoActor())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nodes/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"dev","name":"Developer"}`, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	h := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	h := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithError(t, http.ErrAbortHandler.Error(), func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := metrics.NewMetrics()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/nodes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Metrics(m)(mux)

	for _, path := range []string{"/api/nodes/1", "/api/nodes/2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /api/nodes/{id}", "4xx")))
}
