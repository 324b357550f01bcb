// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"
	"testing"

	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager   = rock.BytesToAddress([]byte("manager"))
	depositor = rock.BytesToAddress([]byte("depositor"))
	valA      = rock.BytesToAddress([]byte("validator-a"))
	valB      = rock.BytesToAddress([]byte("validator-b"))
)

func newTestPool(t *testing.T) *Pool {
	store, err := lvldb.NewMem()
	require.NoError(t, err)
	p, err := NewStore(store, 0).Create(&ledger.Info{Name: "test", Manager: manager})
	require.NoError(t, err)
	return p
}

func assertConserved(t *testing.T, p *Pool) {
	summary, err := p.Summary()
	require.NoError(t, err)
	entries, err := p.Validators()
	require.NoError(t, err)
	staked := new(big.Int)
	for _, entry := range entries {
		staked.Add(staked, entry.Stake)
	}
	assert.Equal(t, summary.TotalValue.String(), new(big.Int).Add(summary.Reserve, staked).String())
}

func TestDepositWithdrawScenario(t *testing.T) {
	p := newTestPool(t)

	// empty pool: 10 units buy 10 shares at 1:1
	res, err := p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), res.Shares)

	// rate unchanged: 5 more units buy 5 shares
	res, err = p.Deposit(depositor, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), res.Shares)

	// 3 shares pay out 3 units
	wres, err := p.Withdraw(depositor, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), wres.Amount)

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12), summary.TotalValue)
	assert.Equal(t, big.NewInt(12), summary.ShareSupply)
	assert.InDelta(t, 1.0, summary.Rate, 1e-12)
	assertConserved(t, p)
}

func TestRewardScenario(t *testing.T) {
	p := newTestPool(t)

	_, err := p.Deposit(depositor, big.NewInt(15))
	require.NoError(t, err)

	applied, err := p.Reconcile(1, big.NewInt(16))
	require.NoError(t, err)
	assert.True(t, applied)

	value, supply, err := p.Rate()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(16), value)
	assert.Equal(t, big.NewInt(15), supply)

	wres, err := p.Withdraw(depositor, big.NewInt(15))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(16), wres.Amount)
}

func TestTotalLossScenario(t *testing.T) {
	p := newTestPool(t)

	_, err := p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)

	// the chain reports everything slashed away
	applied, err := p.Reconcile(1, big.NewInt(0))
	require.NoError(t, err)
	assert.True(t, applied)
	assertConserved(t, p)

	// the surviving shares have no rate to price a deposit against
	_, err = p.Deposit(depositor, big.NewInt(5))
	assert.True(t, reverts.IsRevertErr(err))
	assert.EqualError(t, err, "pool value exhausted")

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalValue.Sign())
	assert.Equal(t, big.NewInt(10), summary.ShareSupply)
	assertConserved(t, p)
}

func TestDepositDelegatesUpToCapacity(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.AddValidator(valA, big.NewInt(8)))

	res, err := p.Deposit(depositor, big.NewInt(12))
	require.NoError(t, err)
	require.Len(t, res.Moves, 1)
	assert.Equal(t, valA, res.Moves[0].Validator)
	assert.Equal(t, big.NewInt(8), res.Moves[0].Amount)

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), summary.Reserve)
	assertConserved(t, p)
}

func TestWithdrawReclaimsReserveShortfall(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.AddValidator(valA, big.NewInt(10)))
	require.NoError(t, p.AddValidator(valB, big.NewInt(5)))

	_, err := p.Deposit(depositor, big.NewInt(12)) // fully delegated: A=10, B=2
	require.NoError(t, err)

	wres, err := p.Withdraw(depositor, big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), wres.Amount)
	assert.NotEmpty(t, wres.Moves, "shortfall reclaimed from validators")

	summary, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), summary.TotalValue)
	assert.Equal(t, 0, summary.Reserve.Sign())
	assertConserved(t, p)
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.AddValidator(valA, big.NewInt(5)))
	_, err := p.Deposit(depositor, big.NewInt(5)) // delegated in full
	require.NoError(t, err)

	before, err := p.Summary()
	require.NoError(t, err)

	_, err = p.Withdraw(depositor, big.NewInt(9))
	assert.True(t, reverts.IsKind(err, reverts.KindInsufficientShares))

	_, err = p.Allocate(big.NewInt(1))
	assert.True(t, reverts.IsKind(err, reverts.KindNoEligibleValidators))

	after, err := p.Summary()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertConserved(t, p)
}

func TestFreshnessGuard(t *testing.T) {
	p := newTestPool(t)
	_, err := p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)

	p.NoteExternalEpoch(3)

	_, err = p.Deposit(depositor, big.NewInt(1))
	assert.True(t, reverts.IsKind(err, reverts.KindStaleEpoch))
	err = p.AddValidator(valA, big.NewInt(10))
	assert.True(t, reverts.IsKind(err, reverts.KindStaleEpoch))

	// reconciling catches the books up and reopens the pool
	applied, err := p.Reconcile(3, big.NewInt(10))
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = p.Deposit(depositor, big.NewInt(1))
	require.NoError(t, err)
}

func TestValidatorLifecycleThroughFacade(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.AddValidator(valA, big.NewInt(10)))

	entry, err := p.Validator(valA)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusActivating, entry.Status)

	_, err = p.Deposit(depositor, big.NewInt(10))
	require.NoError(t, err)

	_, err = p.Reconcile(1, big.NewInt(10))
	require.NoError(t, err)
	entry, err = p.Validator(valA)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusActive, entry.Status)

	// draining and a boundary later the validator can be removed
	require.NoError(t, p.DeactivateValidator(valA))
	err = p.RemoveValidator(valA)
	assert.True(t, reverts.IsKind(err, reverts.KindNonZeroBalance))

	_, err = p.Deallocate(big.NewInt(10))
	require.NoError(t, err)
	_, err = p.Reconcile(2, big.NewInt(10))
	require.NoError(t, err)

	require.NoError(t, p.RemoveValidator(valA))
	entries, err := p.Validators()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExplicitStakeMoves(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.AddValidator(valA, big.NewInt(10)))
	_, err := p.Deposit(depositor, big.NewInt(20)) // 10 delegated, 10 in reserve
	require.NoError(t, err)

	require.NoError(t, p.SetValidatorCap(valA, big.NewInt(15)))
	move, err := p.IncreaseValidatorStake(valA, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), move.Amount)

	entry, err := p.Validator(valA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(15), entry.Stake)

	_, err = p.DecreaseValidatorStake(valA, big.NewInt(3))
	require.NoError(t, err)
	entry, err = p.Validator(valA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12), entry.Stake)
	assertConserved(t, p)
}

func TestSummaryAddresses(t *testing.T) {
	p := newTestPool(t)
	summary, err := p.Summary()
	require.NoError(t, err)

	assert.Equal(t, "test", summary.Name)
	assert.Equal(t, p.Address(), summary.Addresses.Pool)
	assert.Equal(t, manager, summary.Addresses.Manager)
	assert.Equal(t, rock.ReserveAddress(p.Address()), summary.Addresses.Reserve)
	assert.Equal(t, rock.FeeAccountAddress(p.Address()), summary.Addresses.FeeAccount)
	assert.False(t, summary.Addresses.Reserve.IsZero())
	assert.NotEqual(t, summary.Addresses.Reserve, summary.Addresses.FeeAccount)
}
