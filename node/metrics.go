// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"github.com/rockpool-labs/rockpool/metrics"
)

var (
	metricReconcileCount    = metrics.LazyLoadCounterVec("reconcile_count", []string{"status"})
	metricReconcileDuration = metrics.LazyLoadHistogramVec(
		"reconcile_duration_ms", []string{"status"}, metrics.Bucket10s,
	)

	metricJournalCount  = metrics.LazyLoadCounterVec("journal_entry_count", []string{"kind"})
	metricObservedEpoch = metrics.LazyLoadGauge("observed_epoch")
)
