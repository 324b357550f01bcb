// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rockpool-labs/rockpool/kv"
)

// Stage abstracts changes on the main store.
type Stage struct {
	store   kv.Store
	cache   Cache
	changes map[storageKey]rlp.RawValue
}

// Len returns the number of changed slots.
func (s *Stage) Len() int {
	return len(s.changes)
}

// Commit commits all changes into the main store.
// Empty values cause the slot to be deleted.
func (s *Stage) Commit() error {
	bulk := s.store.Bulk()
	for key, raw := range s.changes {
		k := key.storeKey()
		if len(raw) > 0 {
			if err := bulk.Put(k, raw); err != nil {
				return &Error{err}
			}
		} else {
			if err := bulk.Delete(k); err != nil {
				return &Error{err}
			}
		}
	}
	if err := bulk.Write(); err != nil {
		return &Error{err}
	}
	for key, raw := range s.changes {
		s.cache.AddValue(key.storeKey(), raw)
	}
	return nil
}
