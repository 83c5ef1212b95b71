package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	for i := range 2 {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i+1, err)
		}
	}
	if got := l.Status(); got != (ImportLimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}) {
		t.Errorf("Status = %+v", got)
	}

	l.Release()
	l.Release()
	if got := l.Active(); got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestImportLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("error = %v, want ErrTooManyImports", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up after %v, want about 50ms", elapsed)
	}
}

func TestImportLimiter_ContextCancellation(t *testing.T) {
	l := NewImportLimiter(1, 5*time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after cancellation")
	}
}

func TestImportLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	l := NewImportLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()

			mu.Lock()
			maxObserved = max(maxObserved, l.Active())
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent imports, max %d", maxObserved, maxConcurrent)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain returned while an import was active")
	case <-time.After(30 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not return after release")
	}
}

func TestImportLimiter_Defaults(t *testing.T) {
	if got := NewImportLimiter(0, 0).Status().MaxConcurrent; got != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}
}
