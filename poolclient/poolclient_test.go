// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package poolclient

import (
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockpool-labs/rockpool/api"
	"github.com/rockpool-labs/rockpool/api/deposits"
	"github.com/rockpool-labs/rockpool/api/pools"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/poolclient/httpclient"
	"github.com/rockpool-labs/rockpool/rock"
)

var (
	manager   = rock.BytesToAddress([]byte("manager"))
	depositor = rock.BytesToAddress([]byte("depositor"))
	valA      = rock.BytesToAddress([]byte("validator-a"))
)

// initClientServer runs the full API stack and returns a client dialed into it.
func initClientServer(t *testing.T) *Client {
	store, err := lvldb.NewMem()
	require.NoError(t, err)
	poolStore := pool.NewStore(store, 0)
	t.Cleanup(poolStore.Close)

	journal, err := depositdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(journal.Close)

	handler, closer := api.New(poolStore, journal, api.Options{
		AllowedOrigins:   "*",
		LogsLimit:        100,
		MessageCacheSize: 32,
	})
	t.Cleanup(closer)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewWithWS(ts.URL)
	require.NoError(t, err)
	return client
}

func TestClientPoolLifecycle(t *testing.T) {
	client := initClientServer(t)

	summary, err := client.CreatePool(&pools.CreatePool{
		Name:          "lifecycle",
		Manager:       manager,
		EpochFeeBps:   500,
		DepositFeeBps: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "lifecycle", summary.Name)
	poolAddr := summary.Addresses.Pool

	addrs, err := client.Pools()
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, poolAddr, addrs[0])

	// Subscribe before operating so every following event arrives.
	events, err := client.SubscribeEvents(EventsQuery(&poolAddr, pool.OpDeposit))
	require.NoError(t, err)

	dep, err := client.Deposit(&poolAddr, &pools.DepositRequest{Depositor: depositor, Amount: big.NewInt(1000)})
	require.NoError(t, err)
	assert.Equal(t, "1000", dep.Shares.String())

	select {
	case ev := <-events:
		require.NoError(t, ev.Error)
		assert.Equal(t, pool.OpDeposit, ev.Data.Op)
		assert.Equal(t, poolAddr, ev.Data.Pool)
		assert.Equal(t, "1000", ev.Data.Amount.String())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the deposit event")
	}

	account, err := client.Account(&poolAddr, &depositor)
	require.NoError(t, err)
	assert.Equal(t, "1000", account.Shares.String())

	accounts, err := client.Accounts(&poolAddr)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	entry, err := client.AddValidator(&poolAddr, &pools.AddValidator{Validator: valA, Cap: big.NewInt(600)})
	require.NoError(t, err)
	assert.Equal(t, "activating", entry.Status)

	moves, err := client.Allocate(&poolAddr, &pools.Allocation{Op: pools.OpAllocate, Amount: big.NewInt(500)})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, "500", moves[0].Amount.String())

	move, err := client.MoveStake(&poolAddr, &valA, &pools.StakeMove{Op: pools.OpIncrease, Amount: big.NewInt(100)})
	require.NoError(t, err)
	assert.Equal(t, "100", move.Amount.String())

	entry, err = client.Validator(&poolAddr, &valA)
	require.NoError(t, err)
	assert.Equal(t, "600", entry.Stake.String())

	res, err := client.Reconcile(&poolAddr, &pools.ReconcileRequest{Epoch: 1, TotalValue: big.NewInt(1000)})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	entry, err = client.Validator(&poolAddr, &valA)
	require.NoError(t, err)
	assert.Equal(t, "active", entry.Status)

	rate, err := client.Rate(&poolAddr)
	require.NoError(t, err)
	assert.Equal(t, float64(1), rate.Rate)

	wres, err := client.Withdraw(&poolAddr, &pools.WithdrawRequest{Depositor: depositor, Shares: big.NewInt(200)})
	require.NoError(t, err)
	assert.Equal(t, "200", wres.Amount.String())

	summary, err = client.Pool(&poolAddr)
	require.NoError(t, err)
	assert.Equal(t, "800", summary.TotalValue.String())
}

func TestClientErrors(t *testing.T) {
	client := initClientServer(t)

	missing := rock.BytesToAddress([]byte("missing"))
	_, err := client.Pool(&missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrNotFound)

	_, err = client.CreatePool(&pools.CreatePool{Name: "x", Manager: manager})
	require.NoError(t, err)
	_, err = client.CreatePool(&pools.CreatePool{Name: "x", Manager: manager})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrNot200Status)
	assert.Contains(t, err.Error(), "pool already exists")
}

func TestClientNoWS(t *testing.T) {
	client := New("http://localhost:0")
	_, err := client.SubscribeEvents("")
	require.Error(t, err)
	assert.Nil(t, client.RawWSClient())
	assert.NotNil(t, client.RawHTTPClient())
}

func TestClientFilterDeposits(t *testing.T) {
	client := initClientServer(t)

	records, err := client.FilterDeposits(&deposits.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
