// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package onchain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/co"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
)

var logger = log.WithContext("pkg", "onchain")

// SoloOptions tunes the standalone chain simulator.
type SoloOptions struct {
	// Epoch is the epoch counter at startup.
	Epoch uint64
	// EpochInterval is the wall-clock seconds between epoch ticks.
	EpochInterval uint64
	// OnDemand disables the ticker, epochs advance only through NextEpoch.
	OnDemand bool
	// RewardBps is the per-epoch reward rate applied to delegated stake.
	RewardBps uint64
}

// Solo simulates the surrounding chain without any external node.
//
// It keeps one value figure per pool, follows the books through committed
// deposit and withdrawal events, and grows values by the reward rate each
// epoch. Losses are injected by hand.
type Solo struct {
	store   *pool.Store
	options SoloOptions

	ch   chan *pool.Event
	lock sync.Mutex
	tick co.Signal

	epoch  uint64
	values map[rock.Address]*big.Int
}

var _ View = (*Solo)(nil)

// NewSolo returns a Solo instance subscribed to the store's event feed.
func NewSolo(store *pool.Store, options SoloOptions) *Solo {
	s := &Solo{
		store:   store,
		options: options,
		ch:      make(chan *pool.Event, 256),
		epoch:   options.Epoch,
		values:  make(map[rock.Address]*big.Int),
	}
	// the subscription lives as long as the store, its scope unsubscribes on Close
	store.SubscribeEvents(s.ch)
	return s
}

// Run runs the epoch clock for solo.
func (s *Solo) Run(ctx context.Context) error {
	goes := &co.Goes{}

	defer func() {
		<-ctx.Done()
		goes.Wait()
	}()

	logger.Info("epoch clock started", "interval", s.options.EpochInterval, "onDemand", s.options.OnDemand)

	goes.Go(func() {
		s.loop(ctx)
	})

	return nil
}

func (s *Solo) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping epoch ticking service......")
			return
		case ev := <-s.ch:
			s.handle(ev)
		case <-time.After(time.Duration(1) * time.Second):
			if s.options.OnDemand || s.options.EpochInterval == 0 {
				continue
			}
			if left := uint64(time.Now().Unix()) % s.options.EpochInterval; left == 0 {
				if epoch, err := s.NextEpoch(); err != nil {
					logger.Error("failed to advance epoch", "err", err)
				} else {
					logger.Info("📦 new epoch started", "epoch", epoch)
				}
			}
		}
	}
}

// NextEpoch advances the epoch counter and accrues rewards on delegated stake.
func (s *Solo) NextEpoch() (uint64, error) {
	s.drain()

	s.lock.Lock()
	defer s.lock.Unlock()

	pools, err := s.store.All()
	if err != nil {
		return 0, err
	}
	for _, p := range pools {
		value, err := s.valueOfLocked(p.Address())
		if err != nil {
			return 0, err
		}
		if s.options.RewardBps == 0 {
			continue
		}
		entries, err := p.Validators()
		if err != nil {
			return 0, err
		}
		staked := new(big.Int)
		for _, entry := range entries {
			staked.Add(staked, entry.Stake)
		}
		reward := new(big.Int).Mul(staked, new(big.Int).SetUint64(s.options.RewardBps))
		reward.Div(reward, new(big.Int).SetUint64(rock.FeeBasis))
		value.Add(value, reward)
	}
	s.epoch++
	s.tick.Broadcast()
	return s.epoch, nil
}

// NewTicker creates a Waiter receiving the event that the epoch advanced.
func (s *Solo) NewTicker() co.Waiter {
	return s.tick.NewWaiter()
}

// ApplyLoss shrinks a pool's chain value, standing in for slashing.
func (s *Solo) ApplyLoss(poolAddr rock.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("loss must be positive")
	}
	s.drain()

	s.lock.Lock()
	defer s.lock.Unlock()

	value, err := s.valueOfLocked(poolAddr)
	if err != nil {
		return nil, err
	}
	if value.Cmp(amount) < 0 {
		return nil, errors.New("loss exceeds pool value")
	}
	value.Sub(value, amount)
	return new(big.Int).Set(value), nil
}

func (s *Solo) CurrentEpoch(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.drain()

	s.lock.Lock()
	defer s.lock.Unlock()
	return s.epoch, nil
}

func (s *Solo) PoolValue(ctx context.Context, poolAddr rock.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.drain()

	s.lock.Lock()
	defer s.lock.Unlock()

	value, err := s.valueOfLocked(poolAddr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(value), nil
}

// drain applies queued events without blocking, so values stay current
// even when Run is not active.
func (s *Solo) drain() {
	for {
		select {
		case ev := <-s.ch:
			s.handle(ev)
		default:
			return
		}
	}
}

func (s *Solo) handle(ev *pool.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	value, ok := s.values[ev.Pool]
	if !ok {
		// first sight of this pool, the books already include the event
		if _, err := s.seedLocked(ev.Pool); err != nil {
			logger.Error("failed to seed pool value", "pool", ev.Pool, "err", err)
		}
		return
	}

	switch ev.Op {
	case pool.OpDeposit:
		value.Add(value, ev.Amount)
	case pool.OpWithdraw:
		value.Sub(value, ev.Amount)
	}
}

func (s *Solo) valueOfLocked(poolAddr rock.Address) (*big.Int, error) {
	if value, ok := s.values[poolAddr]; ok {
		return value, nil
	}
	return s.seedLocked(poolAddr)
}

// seedLocked takes the pool's book total as the starting chain value.
func (s *Solo) seedLocked(poolAddr rock.Address) (*big.Int, error) {
	p, err := s.store.Open(poolAddr)
	if err != nil {
		return nil, err
	}
	summary, err := p.Summary()
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Set(summary.TotalValue)
	s.values[poolAddr] = value
	return value, nil
}
