// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
)

type settleStats struct {
	real                     mclock.AbsTime
	applied, skipped, failed int
}

func (s *settleStats) UpdateApplied(n int) {
	s.applied += n
}

func (s *settleStats) UpdateSkipped(n int) {
	s.skipped += n
}

func (s *settleStats) UpdateFailed(n int) {
	s.failed += n
}

func (s *settleStats) LogContext(epoch uint64) []interface{} {
	return []interface{}{
		"applied", s.applied,
		"skipped", s.skipped,
		"failed", s.failed,
		"et", common.PrettyDuration(s.real),
		"epoch", epoch,
	}
}
