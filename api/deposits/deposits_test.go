// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package deposits_test

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockpool-labs/rockpool/api/deposits"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/rock"
)

const queryLimit = 5

var (
	poolAddr  = rock.BytesToAddress([]byte("pool"))
	depositor = rock.BytesToAddress([]byte("depositor"))
	other     = rock.BytesToAddress([]byte("other"))
)

func u64(v uint64) *uint64 { return &v }

func initDepositServer(t *testing.T) *httptest.Server {
	db, err := depositdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	// twenty alternating records over two depositors and ten epochs
	var records []*depositdb.Record
	for i := 0; i < 20; i++ {
		kind := depositdb.KindDeposit
		who := depositor
		if i%2 == 1 {
			kind = depositdb.KindWithdraw
			who = other
		}
		records = append(records, &depositdb.Record{
			Pool:      poolAddr,
			Depositor: who,
			Kind:      kind,
			Amount:    big.NewInt(int64(100 + i)),
			Shares:    big.NewInt(int64(100 + i)),
			Epoch:     uint64(i / 2),
			Timestamp: uint64(1700000000 + i),
		})
	}
	require.NoError(t, db.Insert(records))

	router := mux.NewRouter()
	deposits.New(db, queryLimit).Mount(router, "/deposits")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func filterRecords(t *testing.T, ts *httptest.Server, filter *deposits.Filter) ([]*depositdb.Record, int, string) {
	data, err := json.Marshal(filter)
	require.NoError(t, err)
	res, err := http.Post(ts.URL+"/deposits", "application/json", bytes.NewReader(data)) //#nosec G107
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)

	if res.StatusCode != http.StatusOK {
		return nil, res.StatusCode, string(body)
	}
	var records []*depositdb.Record
	require.NoError(t, json.Unmarshal(body, &records))
	return records, res.StatusCode, string(body)
}

func TestFilterRecords(t *testing.T) {
	ts := initDepositServer(t)

	records, status, _ := filterRecords(t, ts, &deposits.Filter{
		Depositor: &depositor,
		Kind:      depositdb.KindDeposit,
		Options:   &depositdb.Options{Limit: queryLimit},
	})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, records, queryLimit)
	for _, rec := range records {
		assert.Equal(t, depositor, rec.Depositor)
		assert.Equal(t, depositdb.KindDeposit, rec.Kind)
	}
}

func TestFilterByEpochRangeDescending(t *testing.T) {
	ts := initDepositServer(t)

	records, status, _ := filterRecords(t, ts, &deposits.Filter{
		Range:   &deposits.Range{Unit: depositdb.Epoch, From: u64(3), To: u64(4)},
		Order:   depositdb.DESC,
		Options: &depositdb.Options{Limit: queryLimit},
	})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, records, 4, "two epochs hold two records each")
	assert.True(t, records[0].Sequence > records[1].Sequence, "descending by sequence")
	for _, rec := range records {
		assert.True(t, rec.Epoch >= 3 && rec.Epoch <= 4)
	}
}

func TestFilterOpenEndedRange(t *testing.T) {
	ts := initDepositServer(t)

	// only the lower bound set, the upper side stays open
	records, status, _ := filterRecords(t, ts, &deposits.Filter{
		Range:   &deposits.Range{Unit: depositdb.Epoch, From: u64(8)},
		Options: &depositdb.Options{Limit: queryLimit},
	})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, records, 4, "epochs 8 and 9 hold two records each")
	for _, rec := range records {
		assert.True(t, rec.Epoch >= 8)
	}
}

func TestFilterLimits(t *testing.T) {
	ts := initDepositServer(t)

	// explicit limit above the configured maximum
	_, status, body := filterRecords(t, ts, &deposits.Filter{
		Options: &depositdb.Options{Limit: queryLimit + 1},
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "options.limit")

	// no options, result larger than the maximum
	_, status, body = filterRecords(t, ts, &deposits.Filter{})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "pagination")

	// inverted range
	_, status, body = filterRecords(t, ts, &deposits.Filter{
		Range: &deposits.Range{Unit: depositdb.Epoch, From: u64(4), To: u64(3)},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "range.to")

	// unknown range unit
	_, status, body = filterRecords(t, ts, &deposits.Filter{
		Range: &deposits.Range{Unit: "block", From: u64(0), To: u64(1)},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "range.unit")
}

func TestFilterRejectsUnknownFields(t *testing.T) {
	ts := initDepositServer(t)

	res, err := http.Post(ts.URL+"/deposits", "application/json", bytes.NewReader([]byte(`{"bogus":1}`))) //#nosec G107
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
