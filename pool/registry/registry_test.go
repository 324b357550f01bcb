// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"
	"testing"

	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/state"
	"github.com/rockpool-labs/rockpool/stor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	valA = rock.BytesToAddress([]byte("validator-a"))
	valB = rock.BytesToAddress([]byte("validator-b"))
	valC = rock.BytesToAddress([]byte("validator-c"))
)

func newTestRegistry(t *testing.T) *Service {
	store, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.NewStater(store, 0).NewState()
	return New(stor.NewContext(rock.BytesToAddress([]byte("pool")), st))
}

func TestAddAndList(t *testing.T) {
	svc := newTestRegistry(t)

	assert.True(t, reverts.IsRevertErr(svc.Add(rock.Address{}, big.NewInt(1), 0)))
	assert.True(t, reverts.IsRevertErr(svc.Add(valA, big.NewInt(-1), 0)))

	require.NoError(t, svc.Add(valA, big.NewInt(10), 1))
	require.NoError(t, svc.Add(valB, big.NewInt(5), 1))
	require.NoError(t, svc.Add(valC, big.NewInt(7), 2))

	err := svc.Add(valA, big.NewInt(3), 2)
	assert.True(t, reverts.IsRevertErr(err))
	assert.EqualError(t, err, "validator already registered")

	entries, err := svc.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, valA, entries[0].Validator)
	assert.Equal(t, valB, entries[1].Validator)
	assert.Equal(t, valC, entries[2].Validator)
	assert.Equal(t, StatusActivating, entries[0].Status)
	assert.Equal(t, uint64(2), entries[2].JoinEpoch)

	size, err := svc.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), size)
}

func TestStakeMoves(t *testing.T) {
	svc := newTestRegistry(t)
	require.NoError(t, svc.Add(valA, big.NewInt(10), 0))

	require.NoError(t, svc.CreditStake(valA, big.NewInt(6)))

	err := svc.CreditStake(valA, big.NewInt(5))
	assert.True(t, reverts.IsKind(err, reverts.KindInsufficientCapacity))

	entry, err := svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), entry.Stake)
	assert.Equal(t, big.NewInt(6), entry.Activating)
	assert.Equal(t, big.NewInt(4), entry.Remaining())

	require.NoError(t, svc.DebitStake(valA, big.NewInt(2)))
	entry, err = svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), entry.Stake)
	// activating collapses onto the remaining stake
	assert.Equal(t, big.NewInt(4), entry.Activating)
	assert.Equal(t, big.NewInt(2), entry.Deactivating)

	err = svc.DebitStake(valA, big.NewInt(5))
	assert.True(t, reverts.IsRevertErr(err))

	err = svc.CreditStake(valB, big.NewInt(1))
	assert.True(t, reverts.IsRevertErr(err), "unregistered validator reverts")
}

func TestLifecycle(t *testing.T) {
	svc := newTestRegistry(t)
	require.NoError(t, svc.Add(valA, big.NewInt(10), 0))
	require.NoError(t, svc.CreditStake(valA, big.NewInt(6)))

	// epoch boundary confirms the activation
	changed, err := svc.ConfirmEpoch()
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	entry, err := svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, entry.Status)
	assert.Equal(t, 0, entry.Activating.Sign())

	// removal refused while stake remains
	err = svc.Remove(valA)
	assert.True(t, reverts.IsKind(err, reverts.KindNonZeroBalance))

	require.NoError(t, svc.Deactivate(valA))
	entry, err = svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, StatusDeactivating, entry.Status)
	assert.False(t, entry.Accepting())

	err = svc.Deactivate(valA)
	assert.True(t, reverts.IsRevertErr(err), "already deactivating")

	// drain, confirm, remove
	require.NoError(t, svc.DebitStake(valA, big.NewInt(6)))

	err = svc.Remove(valA)
	assert.True(t, reverts.IsRevertErr(err), "not yet inactive")

	changed, err = svc.ConfirmEpoch()
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	entry, err = svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, entry.Status)

	require.NoError(t, svc.Remove(valA))

	size, err := svc.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	entries, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveKeepsOrder(t *testing.T) {
	svc := newTestRegistry(t)
	require.NoError(t, svc.Add(valA, big.NewInt(1), 0))
	require.NoError(t, svc.Add(valB, big.NewInt(1), 0))
	require.NoError(t, svc.Add(valC, big.NewInt(1), 0))

	// march B to removable
	require.NoError(t, svc.Deactivate(valB))
	_, err := svc.ConfirmEpoch()
	require.NoError(t, err)
	require.NoError(t, svc.Remove(valB))

	entries, err := svc.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, valA, entries[0].Validator)
	assert.Equal(t, valC, entries[1].Validator)

	// later additions append at the tail again
	require.NoError(t, svc.Add(valB, big.NewInt(1), 3))
	entries, err = svc.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, valB, entries[2].Validator)
}

func TestSetCap(t *testing.T) {
	svc := newTestRegistry(t)
	require.NoError(t, svc.Add(valA, big.NewInt(10), 0))
	require.NoError(t, svc.CreditStake(valA, big.NewInt(8)))

	// lowering below the stake makes the entry read as full
	require.NoError(t, svc.SetCap(valA, big.NewInt(5)))
	entry, err := svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Remaining().Sign())
	assert.Equal(t, big.NewInt(8), entry.Stake)

	err = svc.CreditStake(valA, big.NewInt(1))
	assert.True(t, reverts.IsKind(err, reverts.KindInsufficientCapacity))

	assert.True(t, reverts.IsRevertErr(svc.SetCap(valB, big.NewInt(1))))
}

func TestSlashStake(t *testing.T) {
	svc := newTestRegistry(t)
	require.NoError(t, svc.Add(valA, big.NewInt(10), 0))
	require.NoError(t, svc.CreditStake(valA, big.NewInt(6)))

	require.NoError(t, svc.SlashStake(valA, big.NewInt(4)))
	entry, err := svc.Existing(valA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), entry.Stake)
	assert.Equal(t, big.NewInt(2), entry.Activating)
	assert.Equal(t, 0, entry.Deactivating.Sign(), "slashing is not a transit")

	total, err := svc.TotalStake()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), total)
}

func TestRestore(t *testing.T) {
	svc := newTestRegistry(t)

	require.NoError(t, svc.Restore(&Entry{
		Validator: valA,
		Cap:       big.NewInt(10),
		Stake:     big.NewInt(7),
		Status:    StatusActive,
		JoinEpoch: 3,
	}))
	require.NoError(t, svc.Restore(&Entry{
		Validator:    valB,
		Cap:          big.NewInt(5),
		Stake:        big.NewInt(1),
		Deactivating: big.NewInt(1),
		Status:       StatusDeactivating,
		JoinEpoch:    4,
	}))

	entries, err := svc.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, valA, entries[0].Validator)
	assert.Equal(t, big.NewInt(7), entries[0].Stake)
	assert.Equal(t, StatusActive, entries[0].Status)
	assert.Equal(t, StatusDeactivating, entries[1].Status)
	assert.Equal(t, big.NewInt(1), entries[1].Deactivating)

	assert.EqualError(t, svc.Restore(&Entry{Validator: valA, Status: StatusActive}), "validator already registered")
	assert.EqualError(t, svc.Restore(&Entry{Validator: valC, Status: StatusUnknown}), "restored validator has an unknown status")

	// restored entries obey normal rules from here on
	require.NoError(t, svc.CreditStake(valA, big.NewInt(3)))
	assert.True(t, reverts.IsRevertErr(svc.CreditStake(valA, big.NewInt(1))))
}
