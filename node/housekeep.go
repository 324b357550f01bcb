// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"time"

	"github.com/beevik/ntp"
	"github.com/ethereum/go-ethereum/common"
)

func (n *Node) houseKeeping(ctx context.Context) {
	logger.Debug("enter house keeping")

	staleTicker := time.NewTicker(time.Minute)
	clockSyncTicker := time.NewTicker(10 * time.Minute)

	defer func() {
		logger.Debug("leave house keeping")
		staleTicker.Stop()
		clockSyncTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-staleTicker.C:
			status, err := n.health.Status(0)
			if err != nil {
				continue
			}
			if !status.Healthy {
				logger.Warn("chain view unhealthy", "reachable", status.ViewReachable)
			}
		case <-clockSyncTicker.C:
			go checkClockOffset()
		}
	}
}

// ViewFailureState counts consecutive failed view polls. A long streak hints
// at a skewed local clock rather than a flaky endpoint, so the NTP check
// runs then.
type ViewFailureState uint

func (v *ViewFailureState) Check(reachable bool) {
	if !reachable {
		*v++
		if *v > 30 {
			*v = 0
			go checkClockOffset()
		}
	} else {
		*v = 0
	}
}

func checkClockOffset() {
	resp, err := ntp.Query("pool.ntp.org")
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	if resp.ClockOffset > defaultPollInterval/2 {
		logger.Warn("clock offset detected", "offset", common.PrettyDuration(resp.ClockOffset))
	}
}
