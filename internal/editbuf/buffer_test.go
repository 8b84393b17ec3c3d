package editbuf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type commitLog struct {
	mu      sync.Mutex
	commits []string
	counts  map[string]int
	block   chan struct{}
	err     error
}

func newCommitLog() *commitLog {
	return &commitLog{counts: map[string]int{}}
}

func (l *commitLog) commit(_ context.Context, date string, count int) error {
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits = append(l.commits, date)
	l.counts[date] = count
	return l.err
}

func (l *commitLog) snapshot() ([]string, map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := map[string]int{}
	for k, v := range l.counts {
		counts[k] = v
	}
	return append([]string(nil), l.commits...), counts
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestKeystrokesCoalesceIntoOneCommit(t *testing.T) {
	log := newCommitLog()
	settled := make(chan int, 4)
	b := New(context.Background(), log.commit,
		WithDelay(40*time.Millisecond),
		WithOnSettled(func(date string, count int, err error) { settled <- count }),
	)

	b.OnKeystroke("2024-03-05", "1")
	b.OnKeystroke("2024-03-05", "12")
	b.OnKeystroke("2024-03-05", "123")
	if got := b.Display("2024-03-05", 7); got != "123" {
		t.Fatalf("expected buffered text to override committed value, got %q", got)
	}

	select {
	case count := <-settled:
		if count != 123 {
			t.Fatalf("expected commit of 123, got %d", count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("commit never happened")
	}
	b.Wait()

	commits, counts := log.snapshot()
	if len(commits) != 1 || counts["2024-03-05"] != 123 {
		t.Fatalf("expected a single commit of 123, got %v %v", commits, counts)
	}
	if _, ok := b.Pending("2024-03-05"); ok {
		t.Fatal("expected buffer entry removed after commit")
	}
	if got := b.Display("2024-03-05", 123); got != "123" {
		t.Fatalf("expected display to fall back to committed value, got %q", got)
	}
}

func TestNoCommitBeforeDelay(t *testing.T) {
	log := newCommitLog()
	b := New(context.Background(), log.commit, WithDelay(time.Hour))
	b.OnKeystroke("2024-03-05", "4")
	time.Sleep(20 * time.Millisecond)
	if commits, _ := log.snapshot(); len(commits) != 0 {
		t.Fatalf("expected no commit yet, got %v", commits)
	}
	b.Close()
}

func TestDifferentDatesCommitIndependently(t *testing.T) {
	log := newCommitLog()
	b := New(context.Background(), log.commit, WithDelay(20*time.Millisecond))
	b.OnKeystroke("2024-03-05", "2")
	b.OnKeystroke("2024-03-06", "9")

	waitFor(t, func() bool {
		commits, _ := log.snapshot()
		return len(commits) == 2
	})
	_, counts := log.snapshot()
	if counts["2024-03-05"] != 2 || counts["2024-03-06"] != 9 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCloseCancelsWithoutCommitting(t *testing.T) {
	log := newCommitLog()
	b := New(context.Background(), log.commit, WithDelay(30*time.Millisecond))
	b.OnKeystroke("2024-03-05", "5")
	b.OnKeystroke("2024-03-06", "6")
	b.Close()
	b.OnKeystroke("2024-03-07", "7")

	time.Sleep(100 * time.Millisecond)
	if commits, _ := log.snapshot(); len(commits) != 0 {
		t.Fatalf("expected no commits after close, got %v", commits)
	}
	if _, ok := b.Pending("2024-03-07"); ok {
		t.Fatal("keystrokes after close must be ignored")
	}
}

func TestCancelDropsSingleDate(t *testing.T) {
	log := newCommitLog()
	b := New(context.Background(), log.commit, WithDelay(20*time.Millisecond))
	b.OnKeystroke("2024-03-05", "5")
	b.OnKeystroke("2024-03-06", "6")
	b.Cancel("2024-03-05")

	waitFor(t, func() bool {
		commits, _ := log.snapshot()
		return len(commits) == 1
	})
	time.Sleep(40 * time.Millisecond)
	commits, _ := log.snapshot()
	if len(commits) != 1 || commits[0] != "2024-03-06" {
		t.Fatalf("expected only the uncancelled date to commit, got %v", commits)
	}
}

func TestUpdatingMarkerWhileCommitInFlight(t *testing.T) {
	log := newCommitLog()
	log.block = make(chan struct{})
	b := New(context.Background(), log.commit, WithDelay(10*time.Millisecond))
	b.OnKeystroke("2024-03-05", "8")

	waitFor(t, func() bool { return b.Updating("2024-03-05") })
	if b.Updating("2024-03-06") {
		t.Fatal("updating marker must be per date")
	}
	if got := b.Display("2024-03-05", 0); got != "8" {
		t.Fatalf("expected buffered text while commit is in flight, got %q", got)
	}
	close(log.block)
	b.Wait()
	if b.Updating("2024-03-05") {
		t.Fatal("expected updating marker cleared")
	}
}

func TestFailedCommitIsReported(t *testing.T) {
	log := newCommitLog()
	log.err = errors.New("backend down")
	done := make(chan error, 1)
	b := New(context.Background(), log.commit,
		WithDelay(10*time.Millisecond),
		WithOnSettled(func(_ string, _ int, err error) { done <- err }),
	)
	b.OnKeystroke("2024-03-05", "abc")
	select {
	case err := <-done:
		if err == nil || err.Error() != "backend down" {
			t.Fatalf("expected commit error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("settled callback never ran")
	}
	_, counts := log.snapshot()
	if counts["2024-03-05"] != 0 {
		t.Fatalf("expected invalid text to commit 0, got %d", counts["2024-03-05"])
	}
}

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"  ":    0,
		"7":     7,
		" 42 ":  42,
		"007":   7,
		"-3":    0,
		"1.5":   0,
		"12abc": 0,
		"abc":   0,
	}
	for in, want := range cases {
		if got := ParseCount(in); got != want {
			t.Fatalf("ParseCount(%q)=%d want %d", in, got, want)
		}
	}
}
