// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/kv"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/snapshot"
	"github.com/rockpool-labs/rockpool/state"
	"github.com/rockpool-labs/rockpool/stor"
)

// ErrNotFound is returned when opening a pool that was never created.
var ErrNotFound = errors.New("pool not found")

// The pool index lives under its own well-known address, outside any pool.
var (
	directoryAddr = rock.BytesToAddress([]byte("pool-directory"))
	slotPoolIndex = rock.BytesToBytes32([]byte("pool-index"))
)

// stateBucket namespaces pool state inside the key-value store, keeping the
// key space clear for other record kinds sharing the database.
const stateBucket = kv.Bucket("s")

// Store hosts every pool living in one key-value store and hands out
// long-lived Pool handles. Handles are cached so each pool has exactly one
// writer lock.
type Store struct {
	stater *state.Stater
	feed   event.Feed
	scope  event.SubscriptionScope

	lock  sync.Mutex
	pools map[rock.Address]*Pool
}

// NewStore wraps a key-value store. cacheSizeMB sizes the shared state
// cache, zero or less disables it.
func NewStore(store kv.Store, cacheSizeMB int) *Store {
	return &Store{
		stater: state.NewStater(stateBucket.NewStore(store), cacheSizeMB),
		pools:  make(map[rock.Address]*Pool),
	}
}

// SubscribeEvents registers a channel receiving committed operation events
// of every pool in the store.
func (s *Store) SubscribeEvents(ch chan *Event) event.Subscription {
	return s.scope.Track(s.feed.Subscribe(ch))
}

// Close drops all event subscriptions.
func (s *Store) Close() {
	s.scope.Close()
}

func (s *Store) index(st *state.State) *stor.Raw[[]rock.Address] {
	return stor.NewRaw[[]rock.Address](stor.NewContext(directoryAddr, st), slotPoolIndex)
}

// Create derives the pool address from the manager and name, initializes
// the books and indexes the pool. Creating the same manager/name pair twice
// fails.
func (s *Store) Create(info *ledger.Info) (*Pool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	addr := rock.CreatePoolAddress(info.Manager, info.Name)
	logger.Debug("creating pool", "pool", addr, "name", info.Name, "manager", info.Manager)

	st := s.stater.NewState()
	svc := newServices(addr, st)
	if err := svc.ledger.Initialize(info); err != nil {
		logger.Info("create pool failed", "pool", addr, "error", err)
		return nil, err
	}
	idx := s.index(st)
	addrs, err := idx.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool index")
	}
	if err := idx.Set(append(addrs, addr)); err != nil {
		return nil, errors.Wrap(err, "failed to set pool index")
	}
	if err := st.Stage().Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit pool state")
	}

	pool := newPool(addr, s.stater, &s.feed)
	s.pools[addr] = pool

	logger.Info("created pool", "pool", addr, "name", info.Name)
	pool.emit(&Event{Op: OpCreate, Epoch: info.CreatedEpoch})
	return pool, nil
}

// Import restores a pool from a snapshot stream and indexes it. Nothing is
// committed when the stream fails its digest, signature or conservation
// checks.
func (s *Store) Import(r io.Reader, progress snapshot.Progress) (*Pool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	st := s.stater.NewState()
	meta, err := snapshot.Import(st, r, progress)
	if err != nil {
		logger.Info("import pool failed", "error", err)
		return nil, err
	}
	idx := s.index(st)
	addrs, err := idx.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool index")
	}
	if err := idx.Set(append(addrs, meta.Pool)); err != nil {
		return nil, errors.Wrap(err, "failed to set pool index")
	}
	if err := st.Stage().Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit pool state")
	}

	pool := newPool(meta.Pool, s.stater, &s.feed)
	s.pools[meta.Pool] = pool

	logger.Info("imported pool", "pool", meta.Pool, "name", meta.Info.Name, "epoch", meta.LastEpoch)
	pool.emit(&Event{Op: OpImport, Epoch: meta.LastEpoch})
	return pool, nil
}

// Open returns the handle of an existing pool.
func (s *Store) Open(addr rock.Address) (*Pool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if pool, ok := s.pools[addr]; ok {
		return pool, nil
	}
	svc := newServices(addr, s.stater.NewState())
	ok, err := svc.ledger.Exists()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	pool := newPool(addr, s.stater, &s.feed)
	s.pools[addr] = pool
	return pool, nil
}

// List returns the addresses of all created pools in creation order.
func (s *Store) List() ([]rock.Address, error) {
	addrs, err := s.index(s.stater.NewState()).Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool index")
	}
	return addrs, nil
}

// All opens every created pool.
func (s *Store) All() ([]*Pool, error) {
	addrs, err := s.List()
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, len(addrs))
	for _, addr := range addrs {
		pool, err := s.Open(addr)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}
