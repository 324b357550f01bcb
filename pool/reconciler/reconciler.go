// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reconciler settles epoch boundaries on a pool. It is the sole
// path by which value enters or leaves the books without a matching deposit
// or withdrawal.
package reconciler

import (
	"math/big"
	"sort"

	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
)

// Service resynchronizes one pool's ledger with the authoritative on-chain
// total, collects the epoch fee and confirms validator lifecycle
// transitions.
type Service struct {
	ledger   *ledger.Service
	registry *registry.Service
}

func New(led *ledger.Service, reg *registry.Service) *Service {
	return &Service{
		ledger:   led,
		registry: reg,
	}
}

// Reconcile applies the boundary of the given epoch. The chain total is the
// externally observed value of everything the pool holds. A positive delta
// against the books is a reward and pays the epoch fee to the manager in
// freshly minted shares; a negative delta is a loss and carries no fee.
// Reconciling the last settled epoch again is a no-op, reconciling an
// earlier one fails with a stale epoch revert.
func (s *Service) Reconcile(epoch uint64, chainTotal *big.Int) (bool, error) {
	if chainTotal == nil || chainTotal.Sign() < 0 {
		return false, reverts.New("chain total must not be negative")
	}
	last, err := s.ledger.LastEpoch()
	if err != nil {
		return false, err
	}
	if epoch == last {
		return false, nil
	}
	if epoch < last {
		return false, reverts.StaleEpoch("epoch already reconciled")
	}

	total, err := s.ledger.TotalValue()
	if err != nil {
		return false, err
	}
	delta := new(big.Int).Sub(chainTotal, total)
	switch delta.Sign() {
	case 1:
		if err := s.applyReward(delta); err != nil {
			return false, err
		}
	case -1:
		if err := s.applyLoss(new(big.Int).Neg(delta)); err != nil {
			return false, err
		}
	}

	if _, err := s.registry.ConfirmEpoch(); err != nil {
		return false, err
	}
	s.ledger.SetLastEpoch(epoch)
	return true, nil
}

// applyReward credits the reward and mints the epoch fee to the manager.
// The fee is charged in shares at the post-reward rate, so
// feeShares = supply * fee / (newTotal - fee), floored.
func (s *Service) applyReward(reward *big.Int) error {
	info, err := s.ledger.Info()
	if err != nil {
		return err
	}
	if err := s.ledger.ApplyReward(reward); err != nil {
		return err
	}

	fee := new(big.Int).Mul(reward, new(big.Int).SetUint64(info.EpochFeeBps))
	fee.Quo(fee, new(big.Int).SetUint64(rock.FeeBasis))
	if fee.Sign() == 0 {
		return nil
	}
	supply, err := s.ledger.ShareSupply()
	if err != nil {
		return err
	}
	if supply.Sign() == 0 {
		// nobody to dilute, the manager owns the whole reward already
		return nil
	}
	newTotal, err := s.ledger.TotalValue()
	if err != nil {
		return err
	}
	denom := new(big.Int).Sub(newTotal, fee)
	if denom.Sign() <= 0 {
		return nil
	}
	feeShares := new(big.Int).Mul(supply, fee)
	feeShares.Quo(feeShares, denom)
	if feeShares.Sign() == 0 {
		return nil
	}
	return s.ledger.MintShares(info.Manager, feeShares)
}

// applyLoss debits the books, the reserve first, then slashes validator
// stakes largest first until the loss is covered.
func (s *Service) applyLoss(loss *big.Int) error {
	fromReserve, err := s.ledger.ApplyLoss(loss)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(loss, fromReserve)
	if remaining.Sign() == 0 {
		return nil
	}

	entries, err := s.registry.List()
	if err != nil {
		return err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Stake.Cmp(entries[j].Stake) > 0
	})
	for _, entry := range entries {
		if remaining.Sign() == 0 {
			break
		}
		take := new(big.Int).Set(entry.Stake)
		if take.Cmp(remaining) > 0 {
			take.Set(remaining)
		}
		if take.Sign() == 0 {
			continue
		}
		if err := s.registry.SlashStake(entry.Validator, take); err != nil {
			return err
		}
		remaining.Sub(remaining, take)
	}
	if remaining.Sign() > 0 {
		return reverts.New("loss exceeds delegated stake and reserve")
	}
	return nil
}
