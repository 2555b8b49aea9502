package safego

import (
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})

	Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine never ran")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	Go(func() {
		defer close(done)
		panic("deliberate")
	})

	select {
	case <-done:
		// reaching here without crashing means the panic was recovered
	case <-time.After(2 * time.Second):
		t.Error("goroutine never completed after panic")
	}
}
