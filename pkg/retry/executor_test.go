package retry

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/reframe/pkg/types"
)

var errDropped = types.NewDispatchError("pool", errors.New("result channel: oneshot dropped"))

func TestExecute_Success(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(3, time.Millisecond))

	result, err := Execute(executor, context.Background(), func(ctx context.Context) (string, error) {
		return "success", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got %v", result)
	}

	stats := executor.Stats()
	if stats.TotalAttempts != 1 || stats.TotalSuccesses != 1 || stats.TotalRetries != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestExecute_RetriesDispatchFailure(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(3, time.Millisecond))

	var calls int32
	result, err := Execute(executor, context.Background(), func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, types.NewDispatchError("pool", errors.New("result channel: oneshot dropped"))
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	stats := executor.Stats()
	if stats.TotalAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", stats.TotalAttempts)
	}
	if stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.TotalRetries)
	}
	if stats.TotalRetryDelay != 2*time.Millisecond {
		t.Errorf("Expected 2ms of retry delay, got %v", stats.TotalRetryDelay)
	}
}

func TestExecute_MaxAttemptsReached(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(2, time.Millisecond))

	var calls int32
	_, err := Execute(executor, context.Background(), func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", types.NewDispatchError("spawn", errors.New("worker panicked"))
	})

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if !errors.Is(err, types.ErrDispatch) {
		t.Fatalf("Expected dispatch error, got %v", err)
	}

	var de *types.DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DispatchError, got %T", err)
	}
	if de.Context["retry_attempts"] != 2 {
		t.Errorf("Expected retry_attempts=2, got %v", de.Context["retry_attempts"])
	}
	if executor.Stats().TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", executor.Stats().TotalFailures)
	}
}

func TestExecute_AnalysisErrorNotRetried(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(5, time.Millisecond))

	var calls int32
	_, err := Execute(executor, context.Background(), func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", types.NewAnalysisError(errors.New("unexpected token"))
	})

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if err == nil || err.Error() != "unexpected token" {
		t.Errorf("Expected the analyzer message, got %v", err)
	}
}

func TestExecute_GiveUpWrapsPlainErrors(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(2, 0, WithCondition(func(err error) bool { return err != nil })))

	_, err := Execute(executor, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("flaky")
	})

	if err == nil || !strings.HasPrefix(err.Error(), "giving up after 2 attempts") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestExecute_ContextCanceledDuringDelay(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Execute(executor, ctx, func(ctx context.Context) (string, error) {
		return "", errDropped
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Execute did not stop on cancellation")
	}
}

func TestExecute_ContextAlreadyDone(t *testing.T) {
	executor := NewExecutor(NewFixedDelay(3, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	_, err := Execute(executor, ctx, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
}

type flakyAnalyzer struct {
	failures int32
	calls    int32
}

func (a *flakyAnalyzer) Analyze(ctx context.Context, path, content, env string, minify bool) (string, error) {
	if atomic.AddInt32(&a.calls, 1) <= a.failures {
		return "", errDropped
	}
	return `{"path":"` + path + `"}`, nil
}

func TestAnalyze(t *testing.T) {
	executor := NewExecutor(NewExponentialBackoff(3, time.Millisecond, 5*time.Millisecond))
	a := &flakyAnalyzer{failures: 1}

	out, err := Analyze(executor, context.Background(), a, "file:///a.ts", "x", "server", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out != `{"path":"file:///a.ts"}` {
		t.Errorf("Unexpected output %q", out)
	}
	if a.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", a.calls)
	}
}

func BenchmarkExecute_NoRetry(b *testing.B) {
	executor := NewExecutor(NewFixedDelay(3, time.Millisecond))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Execute(executor, ctx, func(ctx context.Context) (int, error) {
			return i, nil
		})
	}
}
