// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rockpool-labs/rockpool/kv"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/stackedmap"
)

var logger = log.WithContext("pkg", "state")

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// storageKey addresses one slot of one pool.
type storageKey struct {
	pool rock.Address
	slot rock.Bytes32
}

// storeKey builds the flat store key, pool address followed by slot.
func (k storageKey) storeKey() []byte {
	key := make([]byte, 0, len(k.pool)+len(k.slot))
	key = append(key, k.pool.Bytes()...)
	return append(key, k.slot.Bytes()...)
}

// State manages pool storage in a save-restore manner.
// All mutations stay in memory until staged and committed.
type State struct {
	store kv.Store
	cache Cache
	sm    *stackedmap.StackedMap // keeps revisions of storage values
}

// New create state object. cache may be shared between instances.
func New(store kv.Store, cache Cache) *State {
	state := State{
		store: store,
		cache: cache,
	}
	state.sm = stackedmap.New(func(key interface{}) (interface{}, bool, error) {
		return state.cacheGetter(key)
	})
	return &state
}

// cacheGetter implements stackedmap.MapGetter.
func (s *State) cacheGetter(key interface{}) (value interface{}, exist bool, err error) {
	switch k := key.(type) {
	case storageKey:
		raw, err := s.load(k)
		if err != nil {
			return nil, false, err
		}
		return raw, true, nil
	}
	panic(fmt.Errorf("unexpected key type %+v", key))
}

// load reads the committed value of the given key, read cache first.
func (s *State) load(key storageKey) (rlp.RawValue, error) {
	k := key.storeKey()
	if raw, ok := s.cache.GetValue(k); ok {
		return raw, nil
	}
	raw, err := s.store.Get(k)
	if err != nil {
		if !s.store.IsNotFound(err) {
			return nil, err
		}
		raw = nil
	}
	s.cache.AddValue(k, raw)
	return rlp.RawValue(raw), nil
}

// GetStorage returns storage value for the given pool and slot.
func (s *State) GetStorage(pool rock.Address, slot rock.Bytes32) (rock.Bytes32, error) {
	raw, err := s.GetRawStorage(pool, slot)
	if err != nil {
		return rock.Bytes32{}, &Error{err}
	}
	if len(raw) == 0 {
		return rock.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return rock.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// special case for rlp list, it should be customized storage value
		// return hash of raw data
		return rock.Blake2b(raw), nil
	}
	return rock.BytesToBytes32(content), nil
}

// SetStorage set storage value for the given pool and slot.
func (s *State) SetStorage(pool rock.Address, slot rock.Bytes32, value rock.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(pool, slot, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(pool, slot, v)
}

// GetRawStorage returns storage value in rlp raw for given pool and slot.
func (s *State) GetRawStorage(pool rock.Address, slot rock.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{pool, slot})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(pool rock.Address, slot rock.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{pool, slot}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
// Error returned by enc will be absorbed by State instance.
func (s *State) EncodeStorage(pool rock.Address, slot rock.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(pool, slot, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// Error returned by dec will be absorbed by State instance.
func (s *State) DecodeStorage(pool rock.Address, slot rock.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(pool, slot)
	if err != nil {
		return &Error{err}
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Stage makes a stage object to commit all changes in batch.
func (s *State) Stage() *Stage {
	changes := make(map[storageKey]rlp.RawValue)
	s.sm.Journal(func(k, v interface{}) bool {
		if key, ok := k.(storageKey); ok {
			changes[key] = v.(rlp.RawValue)
		}
		return true
	})
	return &Stage{
		store:   s.store,
		cache:   s.cache,
		changes: changes,
	}
}
