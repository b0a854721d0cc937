package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"practice_mentor/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

func TestAuthenticator(t *testing.T) {
	security.InitJWTWithKey([]byte("auth-test-secret"))
	encode := func(claims map[string]interface{}) string {
		_, token, err := security.TokenAuth.Encode(claims)
		if err != nil {
			t.Fatalf("encode token: %v", err)
		}
		return "Bearer " + token
	}

	tests := []struct {
		name       string
		auth       string
		wantStatus int
		wantUser   string
	}{
		{name: "learner token", auth: encode(map[string]interface{}{"user_id": "u1"}), wantStatus: http.StatusOK, wantUser: "u1"},
		{name: "role without user", auth: encode(map[string]interface{}{"role": "admin"}), wantStatus: http.StatusUnauthorized},
		{name: "no token", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", auth: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			h := jwtauth.Verifier(security.TokenAuth)(Authenticator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = GetUserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if gotUser != tt.wantUser {
				t.Fatalf("expected user %q, got %q", tt.wantUser, gotUser)
			}
		})
	}
}
