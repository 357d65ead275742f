package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingLookuper struct {
	mu    sync.Mutex
	calls int
	resp  Response
	err   error
}

func (c *countingLookuper) Lookup(_ context.Context, ip string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	resp := c.resp
	resp.IP = ip
	return resp, c.err
}

type failingStore struct{ NoopCacheStore }

func (failingStore) Get(context.Context, string) (LookupResult, bool, error) {
	return LookupResult{}, false, errors.New("store down")
}

func TestInMemoryCacheStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCacheStore()
	if err := store.Set(ctx, "8.8.8.8", LookupResult{Country: "US"}, 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if res, ok, _ := store.Get(ctx, "8.8.8.8"); !ok || res.Country != "US" {
		t.Fatalf("expected hit, got ok=%v %+v", ok, res)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "8.8.8.8"); ok {
		t.Fatal("expected miss after expiry")
	}
	if err := store.Set(ctx, "8.8.8.8", LookupResult{}, 0); err != nil {
		t.Fatalf("set zero ttl: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "8.8.8.8"); ok {
		t.Fatal("zero ttl must not store")
	}
}

func TestCachedClientServesRepeatLookupsFromStore(t *testing.T) {
	lat := 37.4
	next := &countingLookuper{resp: Response{Success: true, Country: "US", Latitude: &lat}}
	c := NewCachedClient(next, NewInMemoryCacheStore(), time.Minute, nil)

	for i := 0; i < 3; i++ {
		resp, err := c.Lookup(context.Background(), "8.8.8.8")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if !resp.Success || resp.Result().Country != "US" || resp.Result().Lat != 37.4 {
			t.Fatalf("unexpected response %+v", resp.Result())
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one provider call, got %d", next.calls)
	}
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	next := &countingLookuper{resp: Response{Success: false, Message: "invalid ip"}}
	c := NewCachedClient(next, NewInMemoryCacheStore(), time.Minute, nil)
	for i := 0; i < 2; i++ {
		resp, err := c.Lookup(context.Background(), "bogus")
		if err != nil || resp.Success || resp.Message != "invalid ip" {
			t.Fatalf("unexpected result %+v err=%v", resp, err)
		}
	}
	next.err = errors.New("timeout")
	if _, err := c.Lookup(context.Background(), "1.1.1.1"); err == nil {
		t.Fatal("expected transport error to pass through")
	}
	if next.calls != 3 {
		t.Fatalf("failures must reach the provider every time, got %d calls", next.calls)
	}
}

func TestCachedClientFallsBackWhenStoreFails(t *testing.T) {
	next := &countingLookuper{resp: Response{Success: true, City: "Oslo"}}
	c := NewCachedClient(next, &failingStore{}, time.Minute, nil)
	resp, err := c.Lookup(context.Background(), "1.1.1.1")
	if err != nil || resp.City != "Oslo" {
		t.Fatalf("expected provider answer, got %+v err=%v", resp, err)
	}
}

func TestCachedClientZeroTTLBypassesStore(t *testing.T) {
	next := &countingLookuper{resp: Response{Success: true}}
	store := NewInMemoryCacheStore()
	c := NewCachedClient(next, store, 0, nil)
	_, _ = c.Lookup(context.Background(), "1.1.1.1")
	_, _ = c.Lookup(context.Background(), "1.1.1.1")
	if next.calls != 2 {
		t.Fatalf("expected 2 calls without caching, got %d", next.calls)
	}
}
