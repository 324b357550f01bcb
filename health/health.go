// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks the coordinator's liveness signals. The node's
// epoch watcher reports every successful chain view reading here, and the
// admin API turns the recency of those reports into a health verdict.
package health

import (
	"sync"
	"time"
)

// DefaultMaxEpochGap is the longest the last view observation may lie in
// the past before the coordinator reports unhealthy. The watcher polls the
// view far more often than this, so a gap means the view went dark.
const DefaultMaxEpochGap = 60 * time.Second

type EpochObservation struct {
	Epoch      uint64     `json:"epoch"`
	ObservedAt *time.Time `json:"observedAt"`
}

type Status struct {
	Healthy          bool              `json:"healthy"`
	EpochObservation *EpochObservation `json:"epochObservation"`
	ViewReachable    bool              `json:"viewReachable"`
}

type Health struct {
	lock          sync.RWMutex
	observedAt    time.Time
	epoch         uint64
	viewReachable bool
	maxEpochGap   time.Duration
}

func New(maxEpochGap time.Duration) *Health {
	if maxEpochGap == 0 {
		maxEpochGap = DefaultMaxEpochGap
	}
	return &Health{maxEpochGap: maxEpochGap}
}

// NewSolo reports the view as reachable from the start. The solo chain
// lives in process, so there is no dial that could fail.
func NewSolo(maxEpochGap time.Duration) *Health {
	h := New(maxEpochGap)
	h.viewReachable = true
	return h
}

// NewEpochObservation records a successful reading of the chain view.
func (h *Health) NewEpochObservation(epoch uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.observedAt = time.Now()
	h.epoch = epoch
	h.viewReachable = true
}

// ViewStatus records the outcome of the last view poll.
func (h *Health) ViewStatus(reachable bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.viewReachable = reachable
}

// Status derives the health verdict. The gap argument overrides the
// configured maximum when positive, so callers can probe with their own
// tolerance.
func (h *Health) Status(gap time.Duration) (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if gap <= 0 {
		gap = h.maxEpochGap
	}

	observation := &EpochObservation{
		Epoch:      h.epoch,
		ObservedAt: &h.observedAt,
	}

	healthy := h.viewReachable &&
		!h.observedAt.IsZero() &&
		time.Since(h.observedAt) <= gap

	return &Status{
		Healthy:          healthy,
		EpochObservation: observation,
		ViewReachable:    h.viewReachable,
	}, nil
}
