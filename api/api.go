// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the coordinator's REST and websocket surface.
package api

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/rockpool-labs/rockpool/api/deposits"
	"github.com/rockpool-labs/rockpool/api/pools"
	"github.com/rockpool-labs/rockpool/api/subscriptions"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/pool"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins string
	PprofOn        bool
	// LogRequests toggles request logging. It is shared with the admin
	// server, which can flip it while the node runs. Nil disables logging.
	LogRequests      *atomic.Bool
	EnableMetrics    bool
	LogsLimit        uint64
	MessageCacheSize uint32
}

// New return api router
func New(
	store *pool.Store,
	journal *depositdb.DepositDB,
	opts Options,
) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	pools.New(store).
		Mount(router, "/pools")
	deposits.New(journal, opts.LogsLimit).
		Mount(router, "/deposits")
	subs := subscriptions.New(store, origins, opts.MessageCacheSize)
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.LogRequests != nil {
		handler = RequestLoggerHandler(handler, logger, opts.LogRequests)
	}

	return handler.ServeHTTP, subs.Close // subscriptions handles hijacked conns, which need to be closed
}
