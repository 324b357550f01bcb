// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pool is the coordinator facade over the ledger, registry,
// distributor and reconciler services of a stake pool. Every mutation runs
// on a fresh state under a single writer lock and commits all or nothing;
// reads run on their own state and are safe concurrently.
package pool

import (
	"io"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/pool/distributor"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/reconciler"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/snapshot"
	"github.com/rockpool-labs/rockpool/state"
	"github.com/rockpool-labs/rockpool/stor"
)

var logger = log.WithContext("pkg", "pool")

// services is the per-state service set of one pool.
type services struct {
	ledger   *ledger.Service
	registry *registry.Service
	dist     *distributor.Service
	rec      *reconciler.Service
}

func newServices(addr rock.Address, st *state.State) *services {
	sctx := stor.NewContext(addr, st)
	led := ledger.New(sctx)
	reg := registry.New(sctx)
	return &services{
		ledger:   led,
		registry: reg,
		dist:     distributor.New(led, reg),
		rec:      reconciler.New(led, reg),
	}
}

// Addresses are the derived account identities of a pool.
type Addresses struct {
	Pool       rock.Address `json:"pool"`
	Manager    rock.Address `json:"manager"`
	Reserve    rock.Address `json:"reserve"`
	FeeAccount rock.Address `json:"feeAccount"`
}

// Summary is the financial snapshot of a pool.
type Summary struct {
	Name          string    `json:"name"`
	Addresses     Addresses `json:"addresses"`
	EpochFeeBps   uint64    `json:"epochFeeBps"`
	DepositFeeBps uint64    `json:"depositFeeBps"`
	TotalValue    *big.Int  `json:"totalValue"`
	ShareSupply   *big.Int  `json:"shareSupply"`
	Reserve       *big.Int  `json:"reserve"`
	Rate          float64   `json:"rate"`
	LastEpoch     uint64    `json:"lastEpoch"`
	Validators    uint64    `json:"validators"`
}

// DepositResult reports a committed deposit.
type DepositResult struct {
	Shares *big.Int           `json:"shares"`
	Moves  []distributor.Move `json:"moves,omitempty"`
}

// WithdrawResult reports a committed withdrawal.
type WithdrawResult struct {
	Amount *big.Int           `json:"amount"`
	Moves  []distributor.Move `json:"moves,omitempty"`
}

// Pool is the operation surface of one stake pool.
type Pool struct {
	addr   rock.Address
	stater *state.Stater
	feed   *event.Feed

	lock       sync.Mutex // single writer
	knownEpoch atomic.Uint64
}

func newPool(addr rock.Address, stater *state.Stater, feed *event.Feed) *Pool {
	return &Pool{
		addr:   addr,
		stater: stater,
		feed:   feed,
	}
}

// Address returns the derived pool address.
func (p *Pool) Address() rock.Address {
	return p.addr
}

// NoteExternalEpoch records the externally observed epoch. Once it runs
// ahead of the last reconciled epoch, mutating operations refuse to run
// until the pool is reconciled.
func (p *Pool) NoteExternalEpoch(epoch uint64) {
	for {
		known := p.knownEpoch.Load()
		if epoch <= known {
			return
		}
		if p.knownEpoch.CompareAndSwap(known, epoch) {
			return
		}
	}
}

func (p *Pool) view() *services {
	return newServices(p.addr, p.stater.NewState())
}

// checkFresh refuses mutations while the books lag the external epoch.
func (p *Pool) checkFresh(svc *services) error {
	known := p.knownEpoch.Load()
	if known == 0 {
		return nil
	}
	last, err := svc.ledger.LastEpoch()
	if err != nil {
		return err
	}
	if known > last {
		return reverts.StaleEpoch("books lag the external epoch, reconcile first")
	}
	return nil
}

func (p *Pool) commit(st *state.State) error {
	if err := st.Stage().Commit(); err != nil {
		return errors.Wrap(err, "failed to commit pool state")
	}
	return nil
}

func (p *Pool) emit(ev *Event) {
	ev.Pool = p.addr
	p.feed.Send(ev)
}

//
// Views - no state change
//

// Info returns the immutable pool identity.
func (p *Pool) Info() (*ledger.Info, error) {
	return p.view().ledger.Info()
}

// Summary returns the financial snapshot of the pool.
func (p *Pool) Summary() (*Summary, error) {
	svc := p.view()
	info, err := svc.ledger.Info()
	if err != nil {
		return nil, err
	}
	total, err := svc.ledger.TotalValue()
	if err != nil {
		return nil, err
	}
	supply, err := svc.ledger.ShareSupply()
	if err != nil {
		return nil, err
	}
	reserve, err := svc.ledger.Reserve()
	if err != nil {
		return nil, err
	}
	last, err := svc.ledger.LastEpoch()
	if err != nil {
		return nil, err
	}
	size, err := svc.registry.Size()
	if err != nil {
		return nil, err
	}

	value, shares, err := svc.ledger.Rate()
	if err != nil {
		return nil, err
	}
	rate, _ := new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(shares)).Float64()

	return &Summary{
		Name:          info.Name,
		Addresses:     p.DerivedAddresses(info.Manager),
		EpochFeeBps:   info.EpochFeeBps,
		DepositFeeBps: info.DepositFeeBps,
		TotalValue:    total,
		ShareSupply:   supply,
		Reserve:       reserve,
		Rate:          rate,
		LastEpoch:     last,
		Validators:    size,
	}, nil
}

// DerivedAddresses returns the account identities derived from the pool
// address.
func (p *Pool) DerivedAddresses(manager rock.Address) Addresses {
	return Addresses{
		Pool:       p.addr,
		Manager:    manager,
		Reserve:    rock.ReserveAddress(p.addr),
		FeeAccount: rock.FeeAccountAddress(p.addr),
	}
}

// Validators lists the registry in insertion order.
func (p *Pool) Validators() ([]*registry.Entry, error) {
	return p.view().registry.List()
}

// Validator returns one registered entry.
func (p *Pool) Validator(validator rock.Address) (*registry.Entry, error) {
	return p.view().registry.Existing(validator)
}

// SharesOf returns the share holding of one depositor.
func (p *Pool) SharesOf(depositor rock.Address) (*big.Int, error) {
	return p.view().ledger.SharesOf(depositor)
}

// Accounts lists the share accounts holding a non-zero balance.
func (p *Pool) Accounts() ([]*ledger.Account, error) {
	return p.view().ledger.Accounts()
}

// Rate returns the exchange rate as the exact rational value/supply.
func (p *Pool) Rate() (*big.Int, *big.Int, error) {
	return p.view().ledger.Rate()
}

// LastEpoch returns the most recently reconciled epoch.
func (p *Pool) LastEpoch() (uint64, error) {
	return p.view().ledger.LastEpoch()
}

//
// Operations - state change
//

// Deposit contributes amount to the pool and issues shares at the current
// rate. The value lands in the reserve and is delegated right away as far
// as validator capacity allows; the rest stays in the reserve.
func (p *Pool) Deposit(depositor rock.Address, amount *big.Int) (*DepositResult, error) {
	logger.Debug("deposit", "pool", p.addr, "depositor", depositor, "amount", amount)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	shares, err := svc.ledger.Deposit(depositor, amount)
	if err != nil {
		logger.Info("deposit failed", "pool", p.addr, "error", err)
		return nil, err
	}
	moves, _, err := svc.dist.AllocateAvailable(amount)
	if err != nil {
		logger.Info("deposit failed", "pool", p.addr, "error", err)
		return nil, err
	}
	epoch, err := svc.ledger.LastEpoch()
	if err != nil {
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("deposit committed", "pool", p.addr, "depositor", depositor, "shares", shares)
	p.emit(&Event{Op: OpDeposit, Depositor: &depositor, Amount: amount, Shares: shares, Epoch: epoch, Moves: moves})
	return &DepositResult{Shares: shares, Moves: moves}, nil
}

// Withdraw burns shares and pays out the matching amount. A reserve
// shortfall is reclaimed from validators within the same atomic operation.
func (p *Pool) Withdraw(depositor rock.Address, shares *big.Int) (*WithdrawResult, error) {
	logger.Debug("withdraw", "pool", p.addr, "depositor", depositor, "shares", shares)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	moves, err := p.coverWithdrawal(svc, depositor, shares)
	if err != nil {
		logger.Info("withdraw failed", "pool", p.addr, "error", err)
		return nil, err
	}
	amount, err := svc.ledger.Withdraw(depositor, shares)
	if err != nil {
		logger.Info("withdraw failed", "pool", p.addr, "error", err)
		return nil, err
	}
	epoch, err := svc.ledger.LastEpoch()
	if err != nil {
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("withdraw committed", "pool", p.addr, "depositor", depositor, "amount", amount)
	p.emit(&Event{Op: OpWithdraw, Depositor: &depositor, Amount: amount, Shares: shares, Epoch: epoch, Moves: moves})
	return &WithdrawResult{Amount: amount, Moves: moves}, nil
}

// coverWithdrawal reclaims validator stake when the reserve cannot pay the
// withdrawal on its own. The share holding is checked first so an oversized
// request reads as insufficient shares, not as a distributor failure.
func (p *Pool) coverWithdrawal(svc *services, depositor rock.Address, shares *big.Int) ([]distributor.Move, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, reverts.New("share amount must be positive")
	}
	holding, err := svc.ledger.SharesOf(depositor)
	if err != nil {
		return nil, err
	}
	if holding.Cmp(shares) < 0 {
		return nil, reverts.InsufficientShares("share account holds less than requested")
	}
	amount, err := svc.ledger.ConvertToAmount(shares)
	if err != nil {
		return nil, err
	}
	reserve, err := svc.ledger.Reserve()
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(amount) >= 0 {
		return nil, nil
	}
	return svc.dist.Deallocate(new(big.Int).Sub(amount, reserve))
}

// AddValidator registers a validator with the given delegation cap. The
// entry starts activating and joins at the last reconciled epoch.
func (p *Pool) AddValidator(validator rock.Address, cap *big.Int) error {
	logger.Debug("adding validator", "pool", p.addr, "validator", validator, "cap", cap)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return err
	}

	epoch, err := svc.ledger.LastEpoch()
	if err != nil {
		return err
	}
	if err := svc.registry.Add(validator, cap, epoch); err != nil {
		logger.Info("add validator failed", "pool", p.addr, "validator", validator, "error", err)
		return err
	}
	if err := p.commit(st); err != nil {
		return err
	}

	logger.Info("added validator", "pool", p.addr, "validator", validator)
	p.emit(&Event{Op: OpAddValidator, Validator: &validator, Amount: cap})
	return nil
}

// RemoveValidator drops an inactive validator with zero stake from the
// registry.
func (p *Pool) RemoveValidator(validator rock.Address) error {
	logger.Debug("removing validator", "pool", p.addr, "validator", validator)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return err
	}

	if err := svc.registry.Remove(validator); err != nil {
		logger.Info("remove validator failed", "pool", p.addr, "validator", validator, "error", err)
		return err
	}
	if err := p.commit(st); err != nil {
		return err
	}

	logger.Info("removed validator", "pool", p.addr, "validator", validator)
	p.emit(&Event{Op: OpRemoveValidator, Validator: &validator})
	return nil
}

// DeactivateValidator stops a validator from accepting stake; deallocations
// drain it first and the next epoch boundary retires it once empty.
func (p *Pool) DeactivateValidator(validator rock.Address) error {
	logger.Debug("deactivating validator", "pool", p.addr, "validator", validator)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return err
	}

	if err := svc.registry.Deactivate(validator); err != nil {
		logger.Info("deactivate validator failed", "pool", p.addr, "validator", validator, "error", err)
		return err
	}
	if err := p.commit(st); err != nil {
		return err
	}

	logger.Info("deactivated validator", "pool", p.addr, "validator", validator)
	p.emit(&Event{Op: OpDeactivateValidator, Validator: &validator})
	return nil
}

// SetValidatorCap changes the delegation cap of a validator.
func (p *Pool) SetValidatorCap(validator rock.Address, cap *big.Int) error {
	logger.Debug("setting validator cap", "pool", p.addr, "validator", validator, "cap", cap)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return err
	}

	if err := svc.registry.SetCap(validator, cap); err != nil {
		logger.Info("set validator cap failed", "pool", p.addr, "validator", validator, "error", err)
		return err
	}
	if err := p.commit(st); err != nil {
		return err
	}

	logger.Info("set validator cap", "pool", p.addr, "validator", validator, "cap", cap)
	p.emit(&Event{Op: OpSetValidatorCap, Validator: &validator, Amount: cap})
	return nil
}

// Allocate delegates amount from the reserve across the validator set. It
// is all or nothing, unplaceable amounts revert.
func (p *Pool) Allocate(amount *big.Int) ([]distributor.Move, error) {
	logger.Debug("allocate", "pool", p.addr, "amount", amount)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	moves, err := svc.dist.Allocate(amount)
	if err != nil {
		logger.Info("allocate failed", "pool", p.addr, "error", err)
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("allocate committed", "pool", p.addr, "amount", amount, "moves", len(moves))
	p.emit(&Event{Op: OpAllocate, Amount: amount, Moves: moves})
	return moves, nil
}

// Deallocate reclaims amount from the validator set into the reserve.
func (p *Pool) Deallocate(amount *big.Int) ([]distributor.Move, error) {
	logger.Debug("deallocate", "pool", p.addr, "amount", amount)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	moves, err := svc.dist.Deallocate(amount)
	if err != nil {
		logger.Info("deallocate failed", "pool", p.addr, "error", err)
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("deallocate committed", "pool", p.addr, "amount", amount, "moves", len(moves))
	p.emit(&Event{Op: OpDeallocate, Amount: amount, Moves: moves})
	return moves, nil
}

// IncreaseValidatorStake moves amount from the reserve to one validator.
func (p *Pool) IncreaseValidatorStake(validator rock.Address, amount *big.Int) (*distributor.Move, error) {
	logger.Debug("increasing validator stake", "pool", p.addr, "validator", validator, "amount", amount)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	move, err := svc.dist.IncreaseValidatorStake(validator, amount)
	if err != nil {
		logger.Info("increase validator stake failed", "pool", p.addr, "validator", validator, "error", err)
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("increased validator stake", "pool", p.addr, "validator", validator, "amount", amount)
	p.emit(&Event{Op: OpIncreaseStake, Validator: &validator, Amount: amount})
	return move, nil
}

// DecreaseValidatorStake moves amount from one validator back to the
// reserve.
func (p *Pool) DecreaseValidatorStake(validator rock.Address, amount *big.Int) (*distributor.Move, error) {
	logger.Debug("decreasing validator stake", "pool", p.addr, "validator", validator, "amount", amount)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)
	if err := p.checkFresh(svc); err != nil {
		return nil, err
	}

	move, err := svc.dist.DecreaseValidatorStake(validator, amount)
	if err != nil {
		logger.Info("decrease validator stake failed", "pool", p.addr, "validator", validator, "error", err)
		return nil, err
	}
	if err := p.commit(st); err != nil {
		return nil, err
	}

	logger.Info("decreased validator stake", "pool", p.addr, "validator", validator, "amount", amount)
	p.emit(&Event{Op: OpDecreaseStake, Validator: &validator, Amount: amount})
	return move, nil
}

// Reconcile settles the boundary of the given epoch against the externally
// observed chain total. It is exempt from the freshness guard, being the
// operation that restores it.
func (p *Pool) Reconcile(epoch uint64, chainTotal *big.Int) (bool, error) {
	logger.Debug("reconcile", "pool", p.addr, "epoch", epoch, "chainTotal", chainTotal)
	p.lock.Lock()
	defer p.lock.Unlock()

	st := p.stater.NewState()
	svc := newServices(p.addr, st)

	applied, err := svc.rec.Reconcile(epoch, chainTotal)
	if err != nil {
		logger.Info("reconcile failed", "pool", p.addr, "epoch", epoch, "error", err)
		return false, err
	}
	if !applied {
		return false, nil
	}
	if err := p.commit(st); err != nil {
		return false, err
	}
	p.NoteExternalEpoch(epoch)

	logger.Info("reconciled", "pool", p.addr, "epoch", epoch, "chainTotal", chainTotal)
	p.emit(&Event{Op: OpReconcile, Epoch: epoch, Amount: chainTotal})
	return true, nil
}

// Export writes the pool's books to w as a snapshot stream sealed by sign.
// The writer lock is held throughout, so the stream is a consistent picture
// even on a live node.
func (p *Pool) Export(w io.Writer, sign snapshot.SignFunc, progress snapshot.Progress) (*snapshot.Manifest, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	manifest, err := snapshot.Export(p.stater.NewState(), p.addr, w, sign, progress)
	if err != nil {
		logger.Info("export failed", "pool", p.addr, "error", err)
		return nil, err
	}
	logger.Info("exported pool", "pool", p.addr, "digest", manifest.Digest, "signer", manifest.Signer)
	return manifest, nil
}
