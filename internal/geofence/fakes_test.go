package geofence

import (
	"context"
	"sync"
	"time"

	"workforce-backend/internal/platform/cache"
)

// fakeKVStore 単体テスト用のメモリ KV（TTL は無視）
type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	gets   int
	sets   int
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]string)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeKVStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

type fakeRegionStore struct {
	mu        sync.Mutex
	regions   []Region
	listCalls int
	err       error
}

func (f *fakeRegionStore) Insert(ctx context.Context, r Region) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.regions = append(f.regions, r)
	return nil
}

func (f *fakeRegionStore) List(ctx context.Context) ([]Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]Region(nil), f.regions...), nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return "region-" + string(rune('0'+g.n)), nil
}
