package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	if !l.Allow() {
		t.Fatal("nil limiter should allow")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter wait: %v", err)
	}
	if NewLimiter(LimiterOpts{Rate: 0}) != nil {
		t.Fatal("zero rate should disable throttling")
	}
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be drained")
	}
}

func TestLimiterWaitCancel(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow() // drain

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected wait to fail on context deadline")
	}
}

func TestTransport(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Limiter: NewLimiter(LimiterOpts{Rate: 100, Burst: 5})}}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	if hits != 3 {
		t.Fatalf("expected 3 requests, got %d", hits)
	}
}
