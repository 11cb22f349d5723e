package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

func TestNewPool(t *testing.T) {
	p1 := NewPool(5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}
}

func TestPool_ExecutesAllJobs(t *testing.T) {
	var executed int32
	pool := NewPool(3)
	pool.Start()

	for i := 0; i < 10; i++ {
		pool.Submit(&mockJob{executed: &executed})
	}

	results := pool.Wait()
	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}
	if atomic.LoadInt32(&executed) != 10 {
		t.Errorf("expected 10 executions, got %d", executed)
	}
	for _, r := range results {
		if r.GetError() != nil {
			t.Errorf("unexpected job error: %v", r.GetError())
		}
	}
}

func TestPool_CollectsJobErrors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&mockJob{})
	pool.Submit(&mockJob{shouldErr: true})

	results := pool.Wait()
	failures := 0
	for _, r := range results {
		if r.GetError() != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failed job, got %d", failures)
	}
}

func TestPool_ShutdownStopsWorkers(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Submit(&mockJob{duration: 5 * time.Second})

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return in time")
	}
}

func TestLimiter_PerServiceIsolation(t *testing.T) {
	limiter := NewLimiter(1, 1) // 1 rps, burst 1 per service

	if !limiter.Allow("embedding") {
		t.Error("expected first embedding request to pass")
	}
	if limiter.Allow("embedding") {
		t.Error("expected second embedding request to be limited")
	}
	// A different service has its own bucket
	if !limiter.Allow("llm") {
		t.Error("expected llm request to pass despite embedding exhaustion")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "embedding"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_SetServiceRate(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.SetServiceRate("embedding", 1000, 10)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow("embedding") {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("expected burst of 10 after SetServiceRate, got %d", allowed)
	}
}
