// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node runs the coordinator's background duties: it watches the
// chain view for epoch boundaries, settles every pool against the observed
// chain values and journals committed deposits and withdrawals.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"

	"github.com/rockpool-labs/rockpool/co"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/health"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/onchain"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
)

var logger = log.WithContext("pkg", "node")

const (
	defaultPollInterval = 10 * time.Second
	defaultViewTimeout  = 5 * time.Second
)

// Options tunes the node loops.
type Options struct {
	// PollInterval is the wall-clock time between chain view polls.
	PollInterval time.Duration
	// ViewTimeout bounds every single call against the chain view.
	ViewTimeout time.Duration
}

// Node drives the pool store from the chain view. A nil journal disables
// the journal loop, everything else is required.
type Node struct {
	goes co.Goes

	store   *pool.Store
	view    onchain.View
	journal *depositdb.DepositDB
	health  *health.Health
	options Options

	eventCh  chan *pool.Event
	eventSub event.Subscription

	viewFailures ViewFailureState
}

// New returns a Node. The store's event feed is subscribed right away so no
// operation committed between construction and Run escapes the journal.
func New(
	store *pool.Store,
	view onchain.View,
	journal *depositdb.DepositDB,
	healthStatus *health.Health,
	options Options,
) *Node {
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}
	if options.ViewTimeout <= 0 {
		options.ViewTimeout = defaultViewTimeout
	}
	n := &Node{
		store:   store,
		view:    view,
		journal: journal,
		health:  healthStatus,
		options: options,
	}
	if journal != nil {
		n.eventCh = make(chan *pool.Event, 256)
		n.eventSub = store.SubscribeEvents(n.eventCh)
	}
	return n
}

// Run starts the loops and blocks until ctx is done and all of them have
// returned.
func (n *Node) Run(ctx context.Context) error {
	defer n.goes.Wait()

	n.goes.Go(func() { n.watchLoop(ctx) })
	n.goes.Go(func() { n.houseKeeping(ctx) })
	if n.journal != nil {
		n.goes.Go(func() { n.journalLoop(ctx) })
	}

	return nil
}

// epochTicker is satisfied by views that announce epoch movement on their
// own, sparing the watch loop the rest of a poll interval.
type epochTicker interface {
	NewTicker() co.Waiter
}

// watchLoop polls the chain view and settles all pools whenever the epoch
// moves past the last settled one. The first successful poll settles
// unconditionally to restore freshness after a restart.
func (n *Node) watchLoop(ctx context.Context) {
	logger.Debug("enter watch loop")
	defer logger.Debug("leave watch loop")

	ticker := time.NewTicker(n.options.PollInterval)
	defer ticker.Stop()

	var epochTick co.Waiter
	if t, ok := n.view.(epochTicker); ok {
		epochTick = t.NewTicker()
	}
	tickC := func() <-chan bool {
		if epochTick == nil {
			return nil
		}
		return epochTick.C()
	}

	var lastSettled uint64
	settled := false
	for {
		if epoch, err := n.pollEpoch(ctx); err == nil {
			if !settled || epoch > lastSettled {
				n.settlePools(ctx, epoch)
				lastSettled = epoch
				settled = true
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-tickC():
		}
	}
}

// pollEpoch reads the current epoch and feeds the health tracker either way.
func (n *Node) pollEpoch(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, n.options.ViewTimeout)
	defer cancel()

	epoch, err := n.view.CurrentEpoch(ctx)
	if err != nil {
		n.health.ViewStatus(false)
		n.viewFailures.Check(false)
		logger.Debug("failed to read current epoch", "err", err)
		return 0, err
	}
	n.health.NewEpochObservation(epoch)
	n.viewFailures.Check(true)
	metricObservedEpoch().Set(int64(epoch))
	return epoch, nil
}

func (n *Node) settlePools(ctx context.Context, epoch uint64) {
	addrs, err := n.store.List()
	if err != nil {
		logger.Error("failed to list pools", "err", err)
		return
	}

	var stats settleStats
	startTime := mclock.Now()
	for _, addr := range addrs {
		if ctx.Err() != nil {
			return
		}
		n.settlePool(ctx, addr, &stats)
	}
	stats.real = mclock.Now() - startTime

	if stats.applied > 0 || stats.failed > 0 {
		logger.Info(fmt.Sprintf("settled pools (%v)", stats.applied), stats.LogContext(epoch)...)
	}
}

func (n *Node) settlePool(ctx context.Context, addr rock.Address, stats *settleStats) {
	startTime := time.Now()

	applied, err := n.reconcilePool(ctx, addr)

	label := "applied"
	switch {
	case err != nil:
		label = "failed"
		stats.UpdateFailed(1)
		logger.Warn("failed to settle pool", "pool", addr, "err", err)
	case !applied:
		label = "skipped"
		stats.UpdateSkipped(1)
	default:
		stats.UpdateApplied(1)
	}

	status := map[string]string{"status": label}
	metricReconcileCount().AddWithLabel(1, status)
	metricReconcileDuration().ObserveWithLabels(time.Since(startTime).Milliseconds(), status)
}

// reconcilePool takes one consistent reading of the chain and settles the
// pool's books against it. Epochs the pool has already settled come back as
// applied false.
func (n *Node) reconcilePool(ctx context.Context, addr rock.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, n.options.ViewTimeout)
	defer cancel()

	ob, err := onchain.Observe(ctx, n.view, addr)
	if err != nil {
		return false, err
	}
	p, err := n.store.Open(addr)
	if err != nil {
		return false, err
	}
	return p.Reconcile(ob.Epoch, ob.Value)
}

func (n *Node) journalLoop(ctx context.Context) {
	logger.Debug("enter journal loop")
	defer logger.Debug("leave journal loop")

	defer n.eventSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.eventCh:
			n.recordEvent(ev)
		}
	}
}

// recordEvent appends deposit and withdrawal events to the journal. All
// other operations pass through, the books already hold them.
func (n *Node) recordEvent(ev *pool.Event) {
	var kind depositdb.Kind
	switch ev.Op {
	case pool.OpDeposit:
		kind = depositdb.KindDeposit
	case pool.OpWithdraw:
		kind = depositdb.KindWithdraw
	default:
		return
	}
	if ev.Depositor == nil {
		return
	}

	rec := &depositdb.Record{
		Pool:      ev.Pool,
		Depositor: *ev.Depositor,
		Kind:      kind,
		Amount:    ev.Amount,
		Shares:    ev.Shares,
		Epoch:     ev.Epoch,
		Timestamp: uint64(time.Now().Unix()),
	}
	if err := n.journal.Insert([]*depositdb.Record{rec}); err != nil {
		logger.Warn("failed to journal entry", "pool", ev.Pool, "err", err)
		return
	}
	metricJournalCount().AddWithLabel(1, map[string]string{"kind": string(kind)})
}
