package bounded

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCall_ReturnsResult(t *testing.T) {
	v, err := Call(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Errorf("Call = %v, %v; want 42, nil", v, err)
	}
}

func TestCall_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Call(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestCall_ReturnsAtBudgetEvenIfFnIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := Call(context.Background(), 20*time.Millisecond, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})
	elapsed := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("Call took %v, want about 20ms", elapsed)
	}
}

func TestCall_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Call(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want Canceled", err)
	}
}

func TestCall_RecoversPanic(t *testing.T) {
	_, err := Call(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("store exploded")
	})
	if err == nil {
		t.Fatal("expected error from panicking fn")
	}
}

func TestCall_NoBudget(t *testing.T) {
	v, err := Call(context.Background(), 0, func(ctx context.Context) (bool, error) {
		_, has := ctx.Deadline()
		return has, nil
	})
	if err != nil || v {
		t.Errorf("zero timeout should not set a deadline: %v, %v", v, err)
	}
}
