package supervisor_test

import (
	"sync"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/supervisor"
)

func TestBeginSupersedesEarlierTokens(t *testing.T) {
	sup := supervisor.New()
	first := sup.Begin()
	if !sup.IsCurrent(first) {
		t.Fatal("expected first token to be current")
	}
	second := sup.Begin()
	if sup.IsCurrent(first) {
		t.Fatal("expected first token to be stale after second begin")
	}
	if !sup.IsCurrent(second) {
		t.Fatal("expected second token to be current")
	}
	if second <= first {
		t.Fatalf("expected tokens to increase, got %d then %d", first, second)
	}
}

func TestAbortInvalidatesWithoutNewToken(t *testing.T) {
	sup := supervisor.New()
	tok := sup.Begin()
	sup.Abort()
	if sup.IsCurrent(tok) {
		t.Fatal("expected token to be stale after abort")
	}
	if sup.Latest() != uint64(tok)+1 {
		t.Fatalf("expected counter to advance once, got %d", sup.Latest())
	}
	next := sup.Begin()
	if !sup.IsCurrent(next) {
		t.Fatal("expected begin after abort to be current")
	}
}

func TestZeroTokenNeverCurrent(t *testing.T) {
	var sup supervisor.Supervisor
	if sup.IsCurrent(0) {
		t.Fatal("zero token must not be current on a fresh supervisor")
	}
	var gen supervisor.Generation
	if gen.Current() {
		t.Fatal("zero generation must not be current")
	}
}

func TestWatchTracksSupersession(t *testing.T) {
	sup := supervisor.New()
	gen := sup.Watch(sup.Begin())
	if !gen.Current() {
		t.Fatal("expected watched generation to be current")
	}
	sup.Begin()
	if gen.Current() {
		t.Fatal("expected watched generation to go stale")
	}
}

func TestConcurrentBeginYieldsSingleCurrentToken(t *testing.T) {
	sup := supervisor.New()
	const workers = 32
	tokens := make([]supervisor.Token, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = sup.Begin()
		}(i)
	}
	wg.Wait()

	current := 0
	seen := map[supervisor.Token]bool{}
	for _, tok := range tokens {
		if seen[tok] {
			t.Fatalf("duplicate token %d", tok)
		}
		seen[tok] = true
		if sup.IsCurrent(tok) {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current token, got %d", current)
	}
}
