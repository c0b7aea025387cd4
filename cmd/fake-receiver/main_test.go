package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/hooklinehq/hookline/internal/subscriber"
)

const testSecret = "shhh"

func signedRequest(t *testing.T, body string, ts time.Time, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	tsStr := signature.Timestamp(ts)
	req.Header.Set(subscriber.HeaderTimestamp, tsStr)
	req.Header.Set(subscriber.HeaderSignature, signature.Sign(secret, tsStr, []byte(body)))
	req.Header.Set(subscriber.HeaderEventID, "evt-1")
	req.Header.Set(subscriber.HeaderEventType, "order.created")
	return req
}

func TestHandleHookAcceptsValidSignature(t *testing.T) {
	rc := &receiver{secret: testSecret, maxSkew: 5 * time.Minute}
	w := httptest.NewRecorder()

	rc.handleHook(w, signedRequest(t, `{"n":1}`, time.Now(), testSecret))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestHandleHookRejectsBadSignature(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{
			name: "wrong secret",
			req: func(t *testing.T) *http.Request {
				return signedRequest(t, `{}`, time.Now(), "wrong")
			},
		},
		{
			name: "stale timestamp",
			req: func(t *testing.T) *http.Request {
				return signedRequest(t, `{}`, time.Now().Add(-time.Hour), testSecret)
			},
		},
		{
			name: "missing headers",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &receiver{secret: testSecret, maxSkew: 5 * time.Minute}
			w := httptest.NewRecorder()
			req := tt.req(t)
			rc.handleHook(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestHandleHookTamperedBodyRejected(t *testing.T) {
	rc := &receiver{secret: testSecret, maxSkew: 5 * time.Minute}
	req := signedRequest(t, `{"n":1}`, time.Now(), testSecret)
	// replace the body after signing
	tampered := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"n":2}`))
	tampered.Header = req.Header

	w := httptest.NewRecorder()
	rc.handleHook(w, tampered)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandleHookFailsFirstN(t *testing.T) {
	rc := &receiver{failFirstN: 2}
	for i, want := range []int{
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusOK,
		http.StatusOK,
	} {
		w := httptest.NewRecorder()
		rc.handleHook(w, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`)))
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
}

func TestHandleHookNoSecretSkipsVerification(t *testing.T) {
	rc := &receiver{}
	w := httptest.NewRecorder()
	rc.handleHook(w, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`)))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without signature enforcement", w.Code)
	}
}
