// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/rockpool-labs/rockpool/kv"
)

// Stater is the state creator. It holds the read cache shared by
// all state instances it creates.
type Stater struct {
	store kv.Store
	cache Cache
}

// NewStater create a new stater.
// cacheSizeMB <= 0 disables the read cache.
func NewStater(store kv.Store, cacheSizeMB int) *Stater {
	var c Cache
	if cacheSizeMB > 0 {
		c = newReadCache(cacheSizeMB)
	} else {
		c = &dummyCache{}
	}
	return &Stater{store, c}
}

// NewState create a new state object.
func (s *Stater) NewState() *State {
	return New(s.store, s.cache)
}
