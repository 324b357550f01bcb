// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"no error", nil, http.StatusOK, ""},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "boom"},
		{"bad request", BadRequest(errors.New("bad body")), http.StatusBadRequest, "bad body"},
		{"forbidden", Forbidden(errors.New("refused")), http.StatusForbidden, "refused"},
		{"not found", NotFound(errors.New("missing")), http.StatusNotFound, "missing"},
		{"wrapped cause", BadRequest(errors.WithMessage(errors.New("inner"), "outer")), http.StatusBadRequest, "outer: inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			WrapHandlerFunc(func(http.ResponseWriter, *http.Request) error {
				return tt.err
			})(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestParseJSONStrict(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSON(strings.NewReader(`{"name":"rock"}`), &v))
	assert.Equal(t, "rock", v.Name)

	err := ParseJSON(strings.NewReader(`{"name":"rock","bogus":1}`), &v)
	assert.Error(t, err, "unknown fields must be rejected")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, M{"ok": true}))

	assert.Equal(t, JSONContentType, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}
