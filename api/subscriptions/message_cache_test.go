// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageCache_GetOrAdd(t *testing.T) {
	cache := newMessageCache(10)

	counter := atomic.Int32{}
	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		start := time.Now().Add(20 * time.Millisecond)
		go func() {
			defer wg.Done()
			time.Sleep(time.Until(start))
			_, added, err := cache.GetOrAdd(1, func() ([]byte, error) {
				return []byte(`{"op":"deposit"}`), nil
			})
			assert.NoError(t, err)
			if added {
				counter.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, counter.Load(), int32(1), "concurrent misses must marshal exactly once")

	msg, added, err := cache.GetOrAdd(2, func() ([]byte, error) {
		return []byte(`{"op":"withdraw"}`), nil
	})
	assert.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, `{"op":"withdraw"}`, string(msg))

	// both sequences stay cached
	_, added, err = cache.GetOrAdd(1, func() ([]byte, error) {
		return nil, errors.New("must not be called")
	})
	assert.NoError(t, err)
	assert.False(t, added)
}

func TestMessageCacheClampsSize(t *testing.T) {
	assert.NotPanics(t, func() { newMessageCache(0) })
	assert.NotPanics(t, func() { newMessageCache(100000) })
}
