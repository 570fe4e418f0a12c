package fn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result should be ok")
	}
	v, err := ok.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %v, %v", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() {
		t.Fatal("Err result should not be ok")
	}
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestThen(t *testing.T) {
	parse := Stage[string, int](func(_ context.Context, s string) Result[int] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Err[int](err)
		}
		return Ok(n)
	})
	double := Stage[int, int](func(_ context.Context, n int) Result[int] {
		return Ok(n * 2)
	})
	pipeline := Then(parse, double)

	v, err := pipeline(context.Background(), "21").Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("unexpected: %v, %v", v, err)
	}

	if r := pipeline(context.Background(), "nope"); !r.IsErr() {
		t.Fatal("expected parse error to short-circuit")
	}
}

func TestTapStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, n int) { seen = n })
	v, err := tap(context.Background(), 9).Unwrap()
	if err != nil || v != 9 || seen != 9 {
		t.Fatalf("tap did not pass through: v=%d seen=%d err=%v", v, seen, err)
	}
}

func TestParMapResult(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := ParMapResult(items, 2, func(n int) Result[int] {
		if n == 3 {
			return Err[int](fmt.Errorf("reject %d", n))
		}
		return Ok(n * 10)
	})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if v, _ := results[0].Unwrap(); v != 10 {
		t.Fatalf("order not preserved: %d", v)
	}
	if !results[2].IsErr() {
		t.Fatal("expected error at index 2")
	}
	if v, _ := results[4].Unwrap(); v != 50 {
		t.Fatalf("order not preserved: %d", v)
	}
}

func TestParMapResultEmpty(t *testing.T) {
	if out := ParMapResult(nil, 4, func(int) Result[int] { return Ok(0) }); len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	var calls atomic.Int32
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		if calls.Add(1) < 3 {
			return Err[string](errors.New("transient"))
		}
		return Ok("done")
	})
	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Fatalf("unexpected: %v, %v", v, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls int
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](errors.New("always fails"))
	})
	if !r.IsErr() {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
