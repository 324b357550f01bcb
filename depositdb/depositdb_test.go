// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package depositdb_test

import (
	"math/big"
	"testing"

	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/test/datagen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *depositdb.DepositDB {
	db, err := depositdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestInsertAndFilter(t *testing.T) {
	db := newJournal(t)

	poolA := rock.BytesToAddress([]byte("pool-a"))
	poolB := rock.BytesToAddress([]byte("pool-b"))
	alice := rock.BytesToAddress([]byte("alice"))
	bob := rock.BytesToAddress([]byte("bob"))

	var records []*depositdb.Record
	for i := 0; i < 10; i++ {
		depositor := alice
		if i%2 == 1 {
			depositor = bob
		}
		pool := poolA
		if i >= 5 {
			pool = poolB
		}
		kind := depositdb.KindDeposit
		if i%3 == 0 {
			kind = depositdb.KindWithdraw
		}
		records = append(records, &depositdb.Record{
			Pool:      pool,
			Depositor: depositor,
			Kind:      kind,
			Amount:    big.NewInt(int64(100 + i)),
			Shares:    big.NewInt(int64(100 + i)),
			Epoch:     uint64(i / 2),
			Timestamp: uint64(1000 + i),
		})
	}
	require.NoError(t, db.Insert(records))

	all, err := db.Filter(nil)
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, uint64(1), all[0].Sequence, "sequence assigned in insertion order")
	assert.Equal(t, big.NewInt(100), all[0].Amount)

	byPool, err := db.Filter(&depositdb.Filter{Pool: &poolA})
	require.NoError(t, err)
	assert.Len(t, byPool, 5)

	byDepositor, err := db.Filter(&depositdb.Filter{Depositor: &bob})
	require.NoError(t, err)
	assert.Len(t, byDepositor, 5)
	for _, rec := range byDepositor {
		assert.Equal(t, bob, rec.Depositor)
	}

	withdrawals, err := db.Filter(&depositdb.Filter{Kind: depositdb.KindWithdraw})
	require.NoError(t, err)
	assert.Len(t, withdrawals, 4) // i = 0, 3, 6, 9
}

func TestFilterRangeOrderLimit(t *testing.T) {
	db := newJournal(t)
	pool := rock.BytesToAddress([]byte("pool"))
	depositor := rock.BytesToAddress([]byte("depositor"))

	var records []*depositdb.Record
	for i := 0; i < 20; i++ {
		records = append(records, &depositdb.Record{
			Pool:      pool,
			Depositor: depositor,
			Kind:      depositdb.KindDeposit,
			Amount:    big.NewInt(int64(i)),
			Shares:    big.NewInt(int64(i)),
			Epoch:     uint64(i),
			Timestamp: uint64(5000 + i),
		})
	}
	require.NoError(t, db.Insert(records))

	got, err := db.Filter(&depositdb.Filter{
		Range: &depositdb.Range{Unit: depositdb.Epoch, From: 5, To: 9},
	})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = db.Filter(&depositdb.Filter{
		Range: &depositdb.Range{Unit: depositdb.Time, From: 5015, To: 5019},
		Order: depositdb.DESC,
	})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, big.NewInt(19), got[0].Amount, "descending starts at the newest")

	got, err = db.Filter(&depositdb.Filter{
		Options: &depositdb.Options{Offset: 2, Limit: 3},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, big.NewInt(2), got[0].Amount)
}

func TestFilterPagesBulk(t *testing.T) {
	db := newJournal(t)
	pool := datagen.RandAddress()

	depositors := make([]rock.Address, 5)
	for i := range depositors {
		depositors[i] = datagen.RandAddress()
	}

	perDepositor := make(map[rock.Address]int)
	var records []*depositdb.Record
	for i := 0; i < 100; i++ {
		depositor := depositors[datagen.RandIntN(len(depositors))]
		perDepositor[depositor]++
		records = append(records, &depositdb.Record{
			Pool:      pool,
			Depositor: depositor,
			Kind:      depositdb.KindDeposit,
			Amount:    datagen.RandAmount(1e18),
			Shares:    datagen.RandAmount(1e18),
			Epoch:     uint64(i),
			Timestamp: uint64(10000 + i),
		})
	}
	require.NoError(t, db.Insert(records))

	// pages stitch back into the full listing
	var paged []*depositdb.Record
	for offset := uint64(0); ; offset += 30 {
		page, err := db.Filter(&depositdb.Filter{
			Options: &depositdb.Options{Offset: offset, Limit: 30},
		})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
	}
	require.Len(t, paged, len(records))
	for i, rec := range paged {
		assert.Equal(t, uint64(i+1), rec.Sequence)
		assert.Equal(t, records[i].Amount, rec.Amount)
	}

	for depositor, want := range perDepositor {
		got, err := db.Filter(&depositdb.Filter{Depositor: &depositor})
		require.NoError(t, err)
		assert.Len(t, got, want)
	}
}

func TestEmptyJournal(t *testing.T) {
	db := newJournal(t)
	got, err := db.Filter(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
