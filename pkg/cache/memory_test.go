package cache

import (
	"context"
	"errors"
	"testing"
)

type fakeRow struct {
	Ticker string `json:"ticker"`
	Time   string `json:"time"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	rows := []fakeRow{{Ticker: "AAPL", Time: "2023-01-03"}, {Ticker: "AAPL", Time: "2023-01-04"}}
	if err := mc.Set(ctx, "prices:AAPL", rows); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []fakeRow
	if err := mc.Get(ctx, "prices:AAPL", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[1].Time != "2023-01-04" {
		t.Fatalf("unexpected rows %+v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()

	var got []fakeRow
	err := mc.Get(context.Background(), "prices:MSFT", &got)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryCacheSetReplacesWholesale(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", []fakeRow{{Ticker: "A", Time: "2023-01-01"}})
	_ = mc.Set(ctx, "k", []fakeRow{{Ticker: "A", Time: "2023-01-02"}})

	var got []fakeRow
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Time != "2023-01-02" {
		t.Fatalf("expected replacement, got %+v", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", []fakeRow{{Ticker: "A"}})
	_ = mc.Delete(ctx, "k")

	ok, err := mc.Exists(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected gone, ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1)
	_ = mc.Set(ctx, "b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	var n int
	_ = mc.Get(ctx, "a", &n)

	_ = mc.Set(ctx, "c", 3)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b evicted")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Fatalf("expected a retained")
	}
}
