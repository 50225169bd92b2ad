package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testClaims struct {
	subject string
}

func (c testClaims) GetSubject() (string, error) {
	return c.subject, nil
}

type testTokenValidator map[string]string

func (v testTokenValidator) ValidateToken(token string) (SubjectGetter, error) {
	subject, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return testClaims{subject: subject}, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := testTokenValidator{"good": "admin", "anonymous": ""}

	var seen string
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = Subject(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid bearer", header: "Bearer good", want: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer good", want: http.StatusNoContent},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", want: http.StatusUnauthorized},
		{name: "extra parts", header: "Bearer good extra", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", want: http.StatusUnauthorized},
		{name: "empty subject", header: "Bearer anonymous", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/download", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "admin", seen)
			} else {
				assert.Contains(t, w.Body.String(), "unauthorized")
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestSubject_Missing(t *testing.T) {
	_, ok := Subject(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
