// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/rockpool-labs/rockpool/log"
)

// RequestLoggerHandler wraps handler so every request is logged with its body.
// The enabled flag is shared with the admin server, which toggles request
// logging at runtime.
func RequestLoggerHandler(handler http.Handler, logger log.Logger, enabled *atomic.Bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enabled.Load() {
			handler.ServeHTTP(w, r)
			return
		}

		// the body drains only once, leave a replacement reader for the
		// wrapped handler
		var body []byte
		if r.Body != nil {
			var err error
			if body, err = io.ReadAll(r.Body); err != nil {
				logger.Warn("failed to read request body", "err", err)
				http.Error(w, "bad request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		logger.Info("api request",
			"uri", r.URL.String(),
			"method", r.Method,
			"body", string(body),
		)

		handler.ServeHTTP(w, r)
	})
}
