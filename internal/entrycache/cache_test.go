package entrycache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/datetally/internal/domain"
)

func newCacheForTest(t *testing.T) *GormCache {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	c, err := Open(dsn)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMonthMissBeforeFirstStore(t *testing.T) {
	c := newCacheForTest(t)
	_, _, ok, err := c.Month(context.Background(), "alice@example.com", 2024, time.March)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestReplaceMonthRoundTrip(t *testing.T) {
	c := newCacheForTest(t)
	fixed := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	ctx := context.Background()

	err := c.ReplaceMonth(ctx, "alice@example.com", 2024, time.March, []domain.DateEntry{
		{Date: "2024-03-15", Count: 4},
		{Date: "2024-03-01", Count: 3},
		{Date: "2024-04-01", Count: 9},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	entries, fetchedAt, ok, err := c.Month(ctx, "alice@example.com", 2024, time.March)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(entries) != 2 || entries[0] != (domain.DateEntry{Date: "2024-03-01", Count: 3}) || entries[1].Count != 4 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if !fetchedAt.Equal(fixed) {
		t.Fatalf("unexpected fetched at %s", fetchedAt)
	}
}

func TestReplaceMonthOverwritesAndKeepsEmptyMonths(t *testing.T) {
	c := newCacheForTest(t)
	ctx := context.Background()
	if err := c.ReplaceMonth(ctx, "alice@example.com", 2024, time.March, []domain.DateEntry{{Date: "2024-03-01", Count: 3}}); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := c.ReplaceMonth(ctx, "alice@example.com", 2024, time.March, nil); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	entries, _, ok, err := c.Month(ctx, "alice@example.com", 2024, time.March)
	if err != nil || !ok || len(entries) != 0 {
		t.Fatalf("expected cached empty month, got %+v ok=%v err=%v", entries, ok, err)
	}
}

func TestOwnersAreIsolatedAndForgettable(t *testing.T) {
	c := newCacheForTest(t)
	ctx := context.Background()
	_ = c.ReplaceMonth(ctx, "alice@example.com", 2024, time.March, []domain.DateEntry{{Date: "2024-03-01", Count: 3}})
	_ = c.ReplaceMonth(ctx, "bob@example.com", 2024, time.March, []domain.DateEntry{{Date: "2024-03-01", Count: 8}})

	bob, _, _, _ := c.Month(ctx, "bob@example.com", 2024, time.March)
	if len(bob) != 1 || bob[0].Count != 8 {
		t.Fatalf("unexpected bob entries %+v", bob)
	}
	if err := c.Forget(ctx, "alice@example.com"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, _, ok, _ := c.Month(ctx, "alice@example.com", 2024, time.March); ok {
		t.Fatal("expected alice's months forgotten")
	}
	if _, _, ok, _ := c.Month(ctx, "bob@example.com", 2024, time.March); !ok {
		t.Fatal("expected bob's months kept")
	}
}
