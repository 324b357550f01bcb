// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package wsclient

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/poolclient/common"
	"github.com/rockpool-labs/rockpool/rock"
)

func TestClient_SubscribeEvents(t *testing.T) {
	query := "op=deposit"
	expectedEvent := &pool.Event{
		Pool:   rock.BytesToAddress([]byte("pool")),
		Op:     pool.OpDeposit,
		Amount: big.NewInt(7),
		Shares: big.NewInt(7),
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/events", r.URL.Path)
		assert.Equal(t, query, r.URL.RawQuery)

		upgrader := websocket.Upgrader{}

		conn, _ := upgrader.Upgrade(w, r, nil)
		defer conn.Close()

		conn.WriteJSON(expectedEvent)
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	assert.NoError(t, err)
	eventChan, err := client.SubscribeEvents(query)

	assert.NoError(t, err)
	assert.Equal(t, expectedEvent, (<-eventChan).Data)
}

func TestClient_SubscribeEventsServerClose(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}

		conn, _ := upgrader.Upgrade(w, r, nil)
		conn.Close()
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	require.NoError(t, err)
	eventChan, err := client.SubscribeEvents("")
	require.NoError(t, err)

	ev := <-eventChan
	require.Error(t, ev.Error)
	assert.ErrorIs(t, ev.Error, common.ErrUnexpectedMsg)
}

func TestNewClient(t *testing.T) {
	for _, tt := range []struct {
		url    string
		scheme string
		host   string
		fails  bool
	}{
		{url: "http://localhost:8669", scheme: "ws", host: "localhost:8669"},
		{url: "https://localhost:8669", scheme: "wss", host: "localhost:8669"},
		{url: "ws://localhost:8669/", scheme: "ws", host: "localhost:8669"},
		{url: "wss://example.com", scheme: "wss", host: "example.com"},
		{url: "localhost:8669", fails: true},
	} {
		client, err := NewClient(tt.url)
		if tt.fails {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.scheme, client.scheme)
		assert.Equal(t, tt.host, client.host)
	}
}
