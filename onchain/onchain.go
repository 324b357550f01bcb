// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package onchain is the capability boundary to the surrounding chain. The
// coordinator reads the current epoch and externally observed pool values
// through a View and touches the chain no other way.
package onchain

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/rockpool-labs/rockpool/rock"
)

// View reads the authoritative figures the coordinator reconciles against.
// Implementations bound every call by the context deadline; a deadline hit
// surfaces as an ExternalTimeout revert and is never retried here.
type View interface {
	// CurrentEpoch returns the chain's current epoch number.
	CurrentEpoch(ctx context.Context) (uint64, error)
	// PoolValue returns the externally observed total value held by the
	// pool: its reserve plus everything delegated, rewards included.
	PoolValue(ctx context.Context, pool rock.Address) (*big.Int, error)
}

// Observation is one consistent reading of the chain.
type Observation struct {
	Epoch uint64
	Value *big.Int
}

// Observe fetches the current epoch and one pool's value concurrently.
func Observe(ctx context.Context, view View, pool rock.Address) (*Observation, error) {
	var ob Observation
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		epoch, err := view.CurrentEpoch(ctx)
		if err != nil {
			return err
		}
		ob.Epoch = epoch
		return nil
	})
	g.Go(func() error {
		value, err := view.PoolValue(ctx, pool)
		if err != nil {
			return err
		}
		ob.Value = value
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ob, nil
}
