package store

import (
	"context"
	"hash/maphash"
	"sort"
	"sync"

	"github.com/loykin/statushub/internal/status"
)

const shardCount = 16

// Memory is the default in-process Store. Logs are partitioned into
// shards keyed by object id so appends to different objects contend
// only when they hash to the same shard. Reads copy the matched slice
// under the shard lock, which gives callers a stable snapshot.
type Memory struct {
	seed   maphash.Seed
	shards [shardCount]memShard
}

type memShard struct {
	mu   sync.RWMutex
	logs map[status.ObjectID][]Entry
}

func NewMemory() *Memory {
	m := &Memory{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].logs = make(map[status.ObjectID][]Entry)
	}
	return m
}

func (m *Memory) shard(id status.ObjectID) *memShard {
	return &m.shards[maphash.String(m.seed, string(id))%shardCount]
}

func (m *Memory) EnsureSchema(_ context.Context) error { return nil }

func (m *Memory) Append(_ context.Context, e status.Event) (int64, error) {
	sh := m.shard(e.ObjectID)
	sh.mu.Lock()
	log := sh.logs[e.ObjectID]
	pos := int64(len(log)) + 1
	sh.logs[e.ObjectID] = append(log, Entry{Pos: pos, Event: e})
	sh.mu.Unlock()
	return pos, nil
}

func (m *Memory) History(_ context.Context, id status.ObjectID, f Filter) ([]Entry, error) {
	sh := m.shard(id)
	sh.mu.RLock()
	log := sh.logs[id]
	out := make([]Entry, 0, len(log))
	for _, en := range log {
		if en.Pos <= f.AfterPos {
			continue
		}
		if f.Status != "" && en.Event.Status != f.Status {
			continue
		}
		out = append(out, en)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	sh.mu.RUnlock()
	return out, nil
}

func (m *Memory) Current(_ context.Context, id status.ObjectID) (*Entry, error) {
	sh := m.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	log := sh.logs[id]
	if len(log) == 0 {
		return nil, nil
	}
	en := log[len(log)-1]
	return &en, nil
}

func (m *Memory) Objects(_ context.Context) ([]status.ObjectID, error) {
	out := make([]status.ObjectID, 0)
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for id, log := range sh.logs {
			if len(log) > 0 {
				out = append(out, id)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) Purge(_ context.Context, id status.ObjectID) error {
	sh := m.shard(id)
	sh.mu.Lock()
	delete(sh.logs, id)
	sh.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
