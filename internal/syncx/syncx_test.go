package syncx_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poltergeist/reactor/internal/syncx"
	"github.com/poltergeist/reactor/pkg/logger"
)

func TestSafeGroup_RecoversPanic(t *testing.T) {
	g, _ := syncx.NewSafeGroup(context.Background(), logger.NewNopLogger())

	g.Go(func() error {
		panic("executor exploded")
	})

	err := g.Wait()
	if err == nil || !strings.Contains(err.Error(), "executor exploded") {
		t.Fatalf("expected panic converted to error, got %v", err)
	}
}

func TestSafeGroup_FirstErrorCancelsContext(t *testing.T) {
	g, ctx := syncx.NewSafeGroup(context.Background(), nil)
	want := errors.New("first")

	g.Go(func() error { return want })
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestSafeGroup_SetLimit(t *testing.T) {
	g, _ := syncx.NewSafeGroup(context.Background(), nil)
	g.SetLimit(2)

	var running, peak int32
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent goroutines, saw %d", peak)
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := syncx.NewKeyedMutex()

	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("com.example:core:1.0")
			defer unlock()

			if atomic.AddInt32(&inside, 1) != 1 {
				t.Error("two holders of the same key")
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if km.Len() != 0 {
		t.Errorf("expected all entries released, got %d", km.Len())
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := syncx.NewKeyedMutex()

	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}
