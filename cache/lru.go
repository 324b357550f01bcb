// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// LRU is a size-bounded cache that evicts the least recently used entry
// when full. Loads of missing keys are serialized, so concurrent readers
// of the same key trigger the loader once.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewLRU creates an LRU cache holding up to maxSize entries.
func NewLRU(maxSize int) (*LRU, error) {
	c, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

// Get returns the cached value for key.
func (l *LRU) Get(key interface{}) (interface{}, bool) {
	return l.cache.Get(key)
}

// Add stores value under key.
func (l *LRU) Add(key, value interface{}) {
	l.cache.Add(key, value)
}

// GetOrLoad returns the value for key, running load on a miss. The result
// of a failed load is not cached.
func (l *LRU) GetOrLoad(key interface{}, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, v)
	return v, nil
}
