// fake-receiver is a local webhook endpoint for exercising the delivery
// pipeline: it verifies signatures, can fail the first N requests, and can
// delay responses to trigger timeouts.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/hooklinehq/hookline/internal/subscriber"
)

type receiver struct {
	mu            sync.Mutex
	reqCount      int
	failFirstN    int
	secret        string
	maxSkew       time.Duration
	responseDelay time.Duration
}

func main() {
	cfg := config.FromEnv().Receiver

	rcv := &receiver{
		failFirstN:    cfg.FailFirstN,
		secret:        cfg.Secret,
		maxSkew:       time.Duration(cfg.LeewaySeconds) * time.Second,
		responseDelay: time.Duration(cfg.ResponseDelayMS) * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc("/hook", rcv.handleHook)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	log.Printf("fake-receiver listening on %s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}

func (rc *receiver) handleHook(w http.ResponseWriter, r *http.Request) {
	rc.mu.Lock()
	rc.reqCount++
	count := rc.reqCount
	rc.mu.Unlock()

	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if rc.secret != "" {
		ts := r.Header.Get(subscriber.HeaderTimestamp)
		sig := r.Header.Get(subscriber.HeaderSignature)
		if ok, msg := rc.verify(b, ts, sig); !ok {
			log.Printf("fake-receiver rejected request: %s", msg)
			http.Error(w, "invalid signature: "+msg, http.StatusUnauthorized)
			return
		}
	}

	if rc.responseDelay > 0 {
		time.Sleep(rc.responseDelay)
	}

	// Simulate flakiness: first N requests -> 500
	if count <= rc.failFirstN {
		log.Printf("FAILING (%d/%d) event=%s body=%s", count, rc.failFirstN,
			r.Header.Get(subscriber.HeaderEventID), truncate(string(b), 160))
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	log.Printf("fake-receiver OK event=%s type=%s body=%q",
		r.Header.Get(subscriber.HeaderEventID), r.Header.Get(subscriber.HeaderEventType), truncate(string(b), 160))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`ok`))
}

func (rc *receiver) verify(body []byte, ts, sig string) (bool, string) {
	if ts == "" || sig == "" {
		return false, "missing headers"
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false, "invalid timestamp"
	}
	// reject if timestamp is too old/new
	now := time.Now().Unix()
	if abs64(now-unix) > int64(rc.maxSkew.Seconds()) {
		return false, "timestamp too far from now (outside leeway)"
	}
	if !signature.Verify(rc.secret, ts, body, sig) {
		return false, "sig mismatch"
	}
	return true, ""
}

// abs64 returns the absolute value of an int64
func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// truncate truncates a string to the specified length and adds an ellipsis if truncated
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
