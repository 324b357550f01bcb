// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"
	"testing"

	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/state"
	"github.com/rockpool-labs/rockpool/stor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager   = rock.BytesToAddress([]byte("manager"))
	depositor = rock.BytesToAddress([]byte("depositor"))
	valA      = rock.BytesToAddress([]byte("validator-a"))
	valB      = rock.BytesToAddress([]byte("validator-b"))
	valC      = rock.BytesToAddress([]byte("validator-c"))
)

type fixture struct {
	state    *state.State
	ledger   *ledger.Service
	registry *registry.Service
	dist     *Service
}

func newFixture(t *testing.T) *fixture {
	store, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.NewStater(store, 0).NewState()
	sctx := stor.NewContext(rock.BytesToAddress([]byte("pool")), st)

	led := ledger.New(sctx)
	require.NoError(t, led.Initialize(&ledger.Info{Name: "test", Manager: manager}))
	reg := registry.New(sctx)
	return &fixture{st, led, reg, New(led, reg)}
}

func (f *fixture) deposit(t *testing.T, amount int64) {
	_, err := f.ledger.Deposit(depositor, big.NewInt(amount))
	require.NoError(t, err)
}

func (f *fixture) addValidator(t *testing.T, v rock.Address, cap int64) {
	require.NoError(t, f.registry.Add(v, big.NewInt(cap), 0))
}

func (f *fixture) stakeOf(t *testing.T, v rock.Address) *big.Int {
	entry, err := f.registry.Existing(v)
	require.NoError(t, err)
	return entry.Stake
}

// books stay conserved: reserve plus delegated stake equals total value
func (f *fixture) assertConserved(t *testing.T) {
	reserve, err := f.ledger.Reserve()
	require.NoError(t, err)
	staked, err := f.registry.TotalStake()
	require.NoError(t, err)
	total, err := f.ledger.TotalValue()
	require.NoError(t, err)
	assert.Equal(t, total, new(big.Int).Add(reserve, staked))
}

func TestAllocateLargestCapacityFirst(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.addValidator(t, valB, 5)
	f.deposit(t, 12)

	moves, err := f.dist.Allocate(big.NewInt(12))
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, valA, moves[0].Validator)
	assert.Equal(t, big.NewInt(10), moves[0].Amount)
	assert.Equal(t, valB, moves[1].Validator)
	assert.Equal(t, big.NewInt(2), moves[1].Amount)

	assert.Equal(t, big.NewInt(10), f.stakeOf(t, valA))
	assert.Equal(t, big.NewInt(2), f.stakeOf(t, valB))

	reserve, err := f.ledger.Reserve()
	require.NoError(t, err)
	assert.Equal(t, 0, reserve.Sign())
	f.assertConserved(t)
}

func TestAllocateNoEligibleValidators(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 10)

	_, err := f.dist.Allocate(big.NewInt(10))
	assert.True(t, reverts.IsKind(err, reverts.KindNoEligibleValidators))

	// saturated caps count as no eligible validators too
	f.addValidator(t, valA, 5)
	_, err = f.dist.Allocate(big.NewInt(5))
	require.NoError(t, err)
	_, err = f.dist.Allocate(big.NewInt(1))
	assert.True(t, reverts.IsKind(err, reverts.KindNoEligibleValidators))
	f.assertConserved(t)
}

func TestAllocateInsufficientCapacity(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.addValidator(t, valB, 5)
	f.deposit(t, 20)

	_, err := f.dist.Allocate(big.NewInt(16))
	assert.True(t, reverts.IsKind(err, reverts.KindInsufficientCapacity))

	// nothing moved
	assert.Equal(t, 0, f.stakeOf(t, valA).Sign())
	f.assertConserved(t)
}

func TestAllocateBoundedByReserve(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 100)
	f.deposit(t, 5)

	_, err := f.dist.Allocate(big.NewInt(6))
	assert.True(t, reverts.IsRevertErr(err))
	assert.EqualError(t, err, "insufficient reserve")
}

func TestAllocateAvailable(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 8)
	f.deposit(t, 12)

	moves, placed, err := f.dist.AllocateAvailable(big.NewInt(12))
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, big.NewInt(8), placed)

	reserve, err := f.ledger.Reserve()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), reserve)
	f.assertConserved(t)

	// nothing placeable is not an error
	moves, placed, err = f.dist.AllocateAvailable(big.NewInt(4))
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.Equal(t, 0, placed.Sign())
	f.assertConserved(t)
}

func TestDeallocateProportional(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.addValidator(t, valB, 5)
	f.deposit(t, 12)
	_, err := f.dist.Allocate(big.NewInt(12))
	require.NoError(t, err)

	// A holds 10, B holds 2; reclaiming 6 splits 5/1
	moves, err := f.dist.Deallocate(big.NewInt(6))
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, valA, moves[0].Validator)
	assert.Equal(t, big.NewInt(5), moves[0].Amount)
	assert.Equal(t, valB, moves[1].Validator)
	assert.Equal(t, big.NewInt(1), moves[1].Amount)

	reserve, err := f.ledger.Reserve()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), reserve)
	f.assertConserved(t)
}

func TestDeallocateDrainsDeactivatingFirst(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.addValidator(t, valB, 5)
	f.deposit(t, 12)
	_, err := f.dist.Allocate(big.NewInt(12)) // A=10, B=2
	require.NoError(t, err)
	require.NoError(t, f.registry.Deactivate(valB))

	moves, err := f.dist.Deallocate(big.NewInt(5))
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, valB, moves[0].Validator, "deactivating drains first")
	assert.Equal(t, big.NewInt(2), moves[0].Amount)
	assert.Equal(t, valA, moves[1].Validator)
	assert.Equal(t, big.NewInt(3), moves[1].Amount)

	assert.Equal(t, 0, f.stakeOf(t, valB).Sign())
	f.assertConserved(t)
}

func TestDeallocateDustGoesLargestFirst(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 7)
	f.addValidator(t, valB, 7)
	f.addValidator(t, valC, 7)
	f.deposit(t, 17)
	_, err := f.dist.Allocate(big.NewInt(17)) // A=7, B=7, C=3
	require.NoError(t, err)

	// need 5 over 17: floors are 2/2/0, dust 1 tops up the largest
	moves, err := f.dist.Deallocate(big.NewInt(5))
	require.NoError(t, err)
	total := new(big.Int)
	for _, m := range moves {
		total.Add(total, m.Amount)
	}
	assert.Equal(t, big.NewInt(5), total)
	assert.Equal(t, valA, moves[0].Validator)
	assert.Equal(t, big.NewInt(3), moves[0].Amount)
	f.assertConserved(t)
}

func TestDeallocateInsufficientStake(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.deposit(t, 10)
	_, err := f.dist.Allocate(big.NewInt(4))
	require.NoError(t, err)

	_, err = f.dist.Deallocate(big.NewInt(5))
	assert.True(t, reverts.IsRevertErr(err))
	assert.EqualError(t, err, "insufficient delegated stake")
}

func TestIncreaseDecreaseValidatorStake(t *testing.T) {
	f := newFixture(t)
	f.addValidator(t, valA, 10)
	f.deposit(t, 20)

	move, err := f.dist.IncreaseValidatorStake(valA, big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), move.Amount)
	f.assertConserved(t)

	// failed ops are discarded by the caller, same as the pool facade does
	cp := f.state.NewCheckpoint()
	_, err = f.dist.IncreaseValidatorStake(valA, big.NewInt(5))
	assert.True(t, reverts.IsKind(err, reverts.KindInsufficientCapacity))
	f.state.RevertTo(cp)
	f.assertConserved(t)

	move, err = f.dist.DecreaseValidatorStake(valA, big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), move.Amount)
	assert.Equal(t, big.NewInt(4), f.stakeOf(t, valA))
	f.assertConserved(t)

	cp = f.state.NewCheckpoint()
	_, err = f.dist.DecreaseValidatorStake(valA, big.NewInt(5))
	assert.True(t, reverts.IsRevertErr(err))
	f.state.RevertTo(cp)
	f.assertConserved(t)
}
