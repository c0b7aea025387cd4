package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hooklinehq/hookline/internal/auth"
)

func TestPublicKeyHandlerServesPEM(t *testing.T) {
	w := httptest.NewRecorder()
	publicKeyHandler(w, httptest.NewRequest(http.MethodGet, "/public-key", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "RSA PUBLIC KEY") {
		t.Errorf("body does not look like a PEM public key: %q", body)
	}
}

func TestCreateTokenValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "valid", body: `{"subject":"ops@example.com"}`, want: http.StatusOK},
		{name: "missing subject", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{{{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewReader([]byte(tt.body)))
			createTokenHandler(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMintedTokenPassesValidation(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token",
		strings.NewReader(`{"subject":"ops@example.com","ttl_seconds":60}`))
	createTokenHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	validator, err := auth.NewJWTValidator(string(publicKeyPEM), issuer, audience)
	if err != nil {
		t.Fatalf("NewJWTValidator() error: %v", err)
	}
	sub, err := validator.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if sub != "ops@example.com" {
		t.Errorf("subject = %q, want ops@example.com", sub)
	}
}
