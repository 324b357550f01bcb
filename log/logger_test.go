// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestTerminalHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelInfo)

	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))
	l.Debug("quiet")
	assert.Zero(t, buf.Len())

	l.Info("loud", "key", "value")
	out := buf.String()
	assert.Contains(t, out, "INFO ")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "key=value")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(levelMaxVerbosity)
	l := NewLogger(JSONHandlerWithLevel(&buf, &lvl))
	l.Info("hello", "total", big.NewInt(100), "shares", uint256.NewInt(7))

	var rec map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "info", rec["lvl"])
	assert.Equal(t, "100", rec["total"])
	assert.Equal(t, "7", rec["shares"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	old := Root()
	SetDefault(NewLogger(NewTerminalHandler(&buf, false)))
	defer SetDefault(old)

	logger := WithContext("pkg", "ledger")
	logger.Warn("short", "amount", uint64(12))

	out := buf.String()
	assert.Contains(t, out, "pkg=ledger")
	assert.Contains(t, out, "amount=12")
	assert.True(t, strings.Contains(out, "WARN "))
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelCrit, FromLegacyLevel(LegacyLevelCrit))
	assert.Equal(t, slog.LevelInfo, FromLegacyLevel(LegacyLevelInfo))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
}
