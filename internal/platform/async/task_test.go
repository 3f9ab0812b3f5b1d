package async

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGoAwait(t *testing.T) {
	task := Go(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})
	got, err := task.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if got != 42 {
		t.Fatalf("value = %d, want 42", got)
	}
}

func TestThenSkipsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	called := false
	chained := Then(context.Background(), Failed[int](boom), func(context.Context, int) (string, error) {
		called = true
		return "x", nil
	})
	_, err := chained.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if called {
		t.Fatal("expected chained function to be skipped")
	}
}

func TestThenChainsValue(t *testing.T) {
	chained := Then(context.Background(), Completed(2), func(_ context.Context, v int) (int, error) {
		return v * 3, nil
	})
	got, err := chained.Await(context.Background())
	if err != nil || got != 6 {
		t.Fatalf("got %d, %v; want 6, nil", got, err)
	}
}

func TestFinallyObservesOutcome(t *testing.T) {
	boom := errors.New("boom")
	var seen error
	task := Finally(context.Background(), Failed[int](boom), func(_ int, err error) {
		seen = err
	})
	if _, err := task.Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !errors.Is(seen, boom) {
		t.Fatalf("finally saw %v, want boom", seen)
	}
}

func TestPanicFailsTask(t *testing.T) {
	task := Go(context.Background(), func(context.Context) (int, error) {
		panic("bad input")
	})
	_, err := task.Await(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("err = %v, want panic error", err)
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	task := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
