package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestRiderFromToken(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	h := &RiderHandler{JWTSecret: secret}

	valid := signToken(t, secret, jwt.MapClaims{
		"rider_id": 7,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, secret, jwt.MapClaims{
		"rider_id": 7,
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, []byte("ffffffffffffffffffffffffffffffff"), jwt.MapClaims{
		"rider_id": 7,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name    string
		header  string
		query   string
		wantID  int
		wantErr bool
	}{
		{"valid bearer", "Bearer " + valid, "", 7, false},
		{"query token for websockets", "", valid, 7, false},
		{"missing", "", "", 0, true},
		{"expired", "Bearer " + expired, "", 0, true},
		{"wrong key", "Bearer " + wrongKey, "", 0, true},
		{"garbage", "Bearer not.a.token", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/api/rider/orders"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			id, err := h.riderFromToken(r)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got rider %d", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("riderFromToken: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("rider id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	h := &RiderHandler{JWTSecret: secret}

	var gotID int
	handler := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotID = riderID(r)
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("rejects anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/api/rider/orders", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("passes rider id through context", func(t *testing.T) {
		token := signToken(t, secret, jwt.MapClaims{
			"rider_id": 42,
			"exp":      time.Now().Add(time.Hour).Unix(),
		})
		r := httptest.NewRequest(http.MethodGet, "/api/rider/orders", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler(w, r)
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
		if gotID != 42 {
			t.Errorf("rider id in context = %d, want 42", gotID)
		}
	})
}
