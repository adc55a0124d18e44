package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserIDAcceptsValidToken(t *testing.T) {
	s := &Server{cfg: testConfig()}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))

	assert.Equal(t, "user-1", s.parseUserID(req))
}

func TestParseUserIDRejectsMissingHeader(t *testing.T) {
	s := &Server{cfg: testConfig()}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, "", s.parseUserID(req))
}

func TestParseUserIDRejectsMalformedToken(t *testing.T) {
	s := &Server{cfg: testConfig()}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	assert.Equal(t, "", s.parseUserID(req))
}

func TestParseUserIDRejectsWrongSigningSecret(t *testing.T) {
	s := &Server{cfg: testConfig()}
	bad := &Server{cfg: testConfigWithSecret("other-secret")}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signTokenWith(t, "other-secret", "user-1"))

	assert.Equal(t, "", s.parseUserID(req))
	assert.Equal(t, "user-1", bad.parseUserID(req))
}

func TestAuthMiddlewareStoresUserIDInContext(t *testing.T) {
	s := &Server{cfg: testConfig()}
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-2"))
	rec := httptest.NewRecorder()

	s.authMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, "user-2", gotUserID)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareContinuesWithEmptyUserIDOnMissingToken(t *testing.T) {
	s := &Server{cfg: testConfig()}
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "", userIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.authMiddleware(next).ServeHTTP(rec, req)

	assert.True(t, called)
}
