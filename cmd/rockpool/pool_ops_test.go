// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadPoolConfig(t *testing.T) {
	path := writeConfigFile(t, `
name: alpha
manager: "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"
epochFeeBps: 500
depositFeeBps: 25
`)

	cfg, err := readPoolConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.Name)
	assert.Equal(t, "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed", cfg.Manager)
	assert.Equal(t, uint64(500), cfg.EpochFeeBps)
	assert.Equal(t, uint64(25), cfg.DepositFeeBps)
}

func TestReadPoolConfig_DefaultsAndMissingName(t *testing.T) {
	path := writeConfigFile(t, `
name: beta
`)
	cfg, err := readPoolConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Manager)
	assert.Zero(t, cfg.EpochFeeBps)
	assert.Zero(t, cfg.DepositFeeBps)

	path = writeConfigFile(t, `
epochFeeBps: 500
`)
	_, err = readPoolConfig(path)
	assert.Error(t, err)
}

func TestReadPoolConfig_UnknownField(t *testing.T) {
	path := writeConfigFile(t, `
name: gamma
withdrawFeeBps: 10
`)
	_, err := readPoolConfig(path)
	assert.Error(t, err, "unknown keys point at typos and must not pass silently")
}
