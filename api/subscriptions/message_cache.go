// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"fmt"

	"github.com/rockpool-labs/rockpool/cache"
)

// messageCache holds marshaled event messages keyed by their dispatch
// sequence, so an event fanned out to many sockets is encoded once.
type messageCache struct {
	cache *cache.LRU
}

func newMessageCache(cacheSize uint32) *messageCache {
	if cacheSize > 1000 {
		cacheSize = 1000
	}
	if cacheSize == 0 {
		cacheSize = 1
	}
	c, err := cache.NewLRU(int(cacheSize))
	if err != nil {
		panic(fmt.Errorf("create message cache: %w", err))
	}
	return &messageCache{cache: c}
}

// GetOrAdd returns the message for seq, generating and caching it on a miss.
// The second return value tells whether the message was newly generated.
func (mc *messageCache) GetOrAdd(seq uint64, createMessage func() ([]byte, error)) ([]byte, bool, error) {
	generated := false
	msg, err := mc.cache.GetOrLoad(seq, func() (interface{}, error) {
		generated = true
		return createMessage()
	})
	if err != nil {
		return nil, false, err
	}
	return msg.([]byte), generated, nil
}
