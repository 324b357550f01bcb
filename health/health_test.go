// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NewEpochObservation(t *testing.T) {
	h := New(0)

	h.NewEpochObservation(42)

	if h.epoch != 42 {
		t.Errorf("expected epoch to be %v, got %v", 42, h.epoch)
	}

	if time.Since(h.observedAt) > time.Second {
		t.Errorf("observedAt timestamp is not recent")
	}

	status, err := h.Status(0)
	require.NoError(t, err)

	assert.True(t, status.Healthy)
	assert.Equal(t, uint64(42), status.EpochObservation.Epoch)
}

func TestHealth_ViewStatus(t *testing.T) {
	h := New(0)

	h.ViewStatus(true)
	if !h.viewReachable {
		t.Errorf("expected viewReachable to be true, got false")
	}

	h.ViewStatus(false)
	if h.viewReachable {
		t.Errorf("expected viewReachable to be false, got true")
	}

	status, err := h.Status(0)
	require.NoError(t, err)

	assert.False(t, status.Healthy)
}

func TestHealth_Status(t *testing.T) {
	h := New(time.Second)

	h.NewEpochObservation(7)

	status, err := h.Status(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !status.Healthy {
		t.Errorf("expected healthy to be true, got false")
	}

	if status.EpochObservation.Epoch != 7 {
		t.Errorf("expected epoch to be %v, got %v", 7, status.EpochObservation.Epoch)
	}

	if status.EpochObservation.ObservedAt == nil || time.Since(*status.EpochObservation.ObservedAt) > time.Second {
		t.Errorf("observedAt is not recent")
	}

	if !status.ViewReachable {
		t.Errorf("expected viewReachable to be true, got false")
	}
}

func TestHealth_StatusStaleObservation(t *testing.T) {
	h := New(time.Minute)
	h.NewEpochObservation(3)
	h.observedAt = time.Now().Add(-2 * time.Minute)

	status, err := h.Status(0)
	require.NoError(t, err)
	assert.False(t, status.Healthy, "an observation older than the gap must read unhealthy")
	assert.True(t, status.ViewReachable)

	// A wider probe gap accepts the same observation.
	status, err = h.Status(time.Hour)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestHealth_StatusNeverObserved(t *testing.T) {
	h := New(0)
	h.ViewStatus(true)

	status, err := h.Status(0)
	require.NoError(t, err)
	assert.False(t, status.Healthy, "a node that never saw an epoch is not healthy")
}

func TestHealth_Solo(t *testing.T) {
	h := NewSolo(0)
	h.NewEpochObservation(1)

	status, err := h.Status(0)
	require.NoError(t, err)

	require.Equal(t, true, status.ViewReachable)
	require.Equal(t, true, status.Healthy)
}
