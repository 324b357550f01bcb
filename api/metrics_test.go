// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockpool-labs/rockpool/api/pools"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/metrics"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/rock"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func TestMetricsMiddleware(t *testing.T) {
	store, err := lvldb.NewMem()
	require.NoError(t, err)
	poolStore := pool.NewStore(store, 0)
	t.Cleanup(poolStore.Close)

	manager := rock.BytesToAddress([]byte("manager"))
	p, err := poolStore.Create(&ledger.Info{Name: "metered", Manager: manager})
	require.NoError(t, err)
	_, err = p.Deposit(rock.BytesToAddress([]byte("depositor")), big.NewInt(5))
	require.NoError(t, err)

	router := mux.NewRouter()
	pools.New(poolStore).Mount(router, "/pools")
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Use(metricsMiddleware)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	// one hit, one miss and one bad request
	httpGetBody(t, ts.URL+"/pools/"+p.Address().String())
	_, code := httpGetBody(t, ts.URL+"/pools/"+rock.BytesToAddress([]byte("nobody")).String())
	assert.Equal(t, 404, code)
	_, code = httpGetBody(t, ts.URL+"/pools/0x")
	assert.Equal(t, 400, code)

	body, _ := httpGetBody(t, ts.URL+"/metrics")
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	assert.Nil(t, err)

	m := families["rockpool_metrics_api_request_count"].GetMetric()
	require.Equal(t, 3, len(m), "should be 3 metric entries")

	codes := make(map[string]float64)
	for _, entry := range m {
		labels := entry.GetLabel()
		require.Equal(t, 3, len(labels))
		assert.Equal(t, "code", labels[0].GetName())
		assert.Equal(t, "method", labels[1].GetName())
		assert.Equal(t, "GET", labels[1].GetValue())
		assert.Equal(t, "name", labels[2].GetName())
		assert.Equal(t, "GET /pools/{address}", labels[2].GetValue())
		codes[labels[0].GetValue()] = entry.GetCounter().GetValue()
	}
	assert.Equal(t, float64(1), codes["200"])
	assert.Equal(t, float64(1), codes["404"])
	assert.Equal(t, float64(1), codes["400"])
}

func httpGetBody(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	if err != nil {
		t.Fatal(err)
	}
	r, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return r, res.StatusCode
}
