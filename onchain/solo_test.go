// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package onchain_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/onchain"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/rock"
)

var (
	manager   = rock.BytesToAddress([]byte("manager"))
	depositor = rock.BytesToAddress([]byte("depositor"))
	valA      = rock.BytesToAddress([]byte("validator-a"))
)

func newTestPool(t *testing.T) (*pool.Store, *pool.Pool) {
	store, err := lvldb.NewMem()
	require.NoError(t, err)

	pools := pool.NewStore(store, 0)
	t.Cleanup(pools.Close)

	p, err := pools.Create(&ledger.Info{Name: "test", Manager: manager})
	require.NoError(t, err)
	return pools, p
}

func TestSoloFollowsDepositsAndWithdrawals(t *testing.T) {
	pools, p := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{})

	value, err := solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Zero(t, value.Sign())

	res, err := p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)

	value, err = solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(10), value)

	_, err = p.Withdraw(depositor, new(big.Int).Sub(res.Shares, big.NewInt(4)))
	require.NoError(t, err)

	value, err = solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(4), value)
}

func TestSoloSeedsFromBooks(t *testing.T) {
	pools, p := newTestPool(t)

	// commits before the simulator exists are picked up from the books
	_, err := p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)

	solo := onchain.NewSolo(pools, onchain.SoloOptions{})
	value, err := solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(10), value)

	_, err = p.Deposit(depositor, big.NewInt(5))
	require.NoError(t, err)

	value, err = solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(15), value)
}

func TestSoloAccruesRewardsOnDelegatedStake(t *testing.T) {
	pools, p := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{RewardBps: 1000})

	require.NoError(t, p.AddValidator(valA, big.NewInt(50)))
	_, err := p.Deposit(depositor, big.NewInt(100))
	require.NoError(t, err)

	// 50 delegated, 50 idle in the reserve, reward lands on the delegated part
	epoch, err := solo.NextEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)

	value, err := solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(105), value)

	applied, err := p.Reconcile(epoch, value)
	require.NoError(t, err)
	assert.True(t, applied)

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, "105", summary.TotalValue.String())

	// stake is unchanged, the reward stays in the reserve
	epoch, err = solo.NextEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epoch)

	value, err = solo.PoolValue(context.Background(), p.Address())
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(110), value)
}

func TestSoloApplyLoss(t *testing.T) {
	pools, p := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{})

	_, err := p.Deposit(depositor, big.NewInt(20))
	require.NoError(t, err)

	_, err = solo.ApplyLoss(p.Address(), big.NewInt(30))
	assert.EqualError(t, err, "loss exceeds pool value")

	value, err := solo.ApplyLoss(p.Address(), big.NewInt(5))
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(15), value)

	applied, err := p.Reconcile(1, value)
	require.NoError(t, err)
	assert.True(t, applied)

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, "15", summary.TotalValue.String())
}

func TestSoloStartEpoch(t *testing.T) {
	pools, _ := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{Epoch: 7})

	epoch, err := solo.CurrentEpoch(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, uint64(7), epoch)

	epoch, err = solo.NextEpoch()
	assert.Nil(t, err)
	assert.Equal(t, uint64(8), epoch)
}

func TestSoloHonorsCanceledContext(t *testing.T) {
	pools, p := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := solo.CurrentEpoch(ctx)
	assert.Error(t, err)
	_, err = solo.PoolValue(ctx, p.Address())
	assert.Error(t, err)
}

func TestSoloRunStopsOnCancel(t *testing.T) {
	pools, _ := newTestPool(t)
	solo := onchain.NewSolo(pools, onchain.SoloOptions{OnDemand: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- solo.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("solo did not stop")
	}
}
