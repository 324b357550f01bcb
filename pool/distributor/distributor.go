// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distributor moves stake between the reserve and the validator
// set. Allocation fills the largest remaining capacity first; deallocation
// drains deactivating validators first and spreads the rest proportionally
// to current stake.
package distributor

import (
	"math/big"
	"sort"

	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
)

// Move is one stake transfer between the reserve and a validator.
type Move struct {
	Validator rock.Address `json:"validator"`
	Amount    *big.Int     `json:"amount"`
}

// Service plans and applies stake moves for one pool.
type Service struct {
	ledger   *ledger.Service
	registry *registry.Service
}

func New(ledger *ledger.Service, registry *registry.Service) *Service {
	return &Service{
		ledger:   ledger,
		registry: registry,
	}
}

// Allocate delegates amount from the reserve across accepting validators,
// largest remaining capacity first, ties kept in registry order. It is all
// or nothing: when the caps cannot take the full amount it reverts with
// InsufficientCapacity, when nothing can be placed with
// NoEligibleValidators.
func (s *Service) Allocate(amount *big.Int) ([]Move, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("allocation amount must be positive")
	}
	moves, placed, err := s.planAllocation(amount)
	if err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, reverts.NoEligibleValidators("no validator accepting stake")
	}
	if placed.Cmp(amount) < 0 {
		return nil, reverts.InsufficientCapacity("validator caps cannot take the amount")
	}
	if err := s.apply(moves, placed); err != nil {
		return nil, err
	}
	return moves, nil
}

// AllocateAvailable places as much of amount as the caps and the reserve
// allow, which may be nothing. Deposits use it so that unplaceable value
// simply waits in the reserve.
func (s *Service) AllocateAvailable(amount *big.Int) ([]Move, *big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, new(big.Int), nil
	}
	reserve, err := s.ledger.Reserve()
	if err != nil {
		return nil, nil, err
	}
	target := new(big.Int).Set(amount)
	if reserve.Cmp(target) < 0 {
		target.Set(reserve)
	}
	if target.Sign() == 0 {
		return nil, new(big.Int), nil
	}
	moves, placed, err := s.planAllocation(target)
	if err != nil {
		return nil, nil, err
	}
	if placed.Sign() == 0 {
		return nil, new(big.Int), nil
	}
	if err := s.apply(moves, placed); err != nil {
		return nil, nil, err
	}
	return moves, placed, nil
}

// Deallocate reclaims amount from validators into the reserve. Validators
// being deactivated drain first; the remainder is taken proportionally to
// current stake with a largest-first pass for rounding dust.
func (s *Service) Deallocate(amount *big.Int) ([]Move, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("deallocation amount must be positive")
	}
	entries, err := s.registry.List()
	if err != nil {
		return nil, err
	}

	var draining, rest []*registry.Entry
	total := new(big.Int)
	for _, entry := range entries {
		if entry.Stake.Sign() == 0 {
			continue
		}
		total.Add(total, entry.Stake)
		if entry.Status == registry.StatusDeactivating {
			draining = append(draining, entry)
		} else {
			rest = append(rest, entry)
		}
	}
	if total.Cmp(amount) < 0 {
		return nil, reverts.New("insufficient delegated stake")
	}

	left := new(big.Int).Set(amount)
	var moves []Move

	// deactivating validators first, largest stake first
	sort.SliceStable(draining, func(i, j int) bool {
		return draining[i].Stake.Cmp(draining[j].Stake) > 0
	})
	for _, entry := range draining {
		if left.Sign() == 0 {
			break
		}
		take := minBig(entry.Stake, left)
		moves = append(moves, Move{entry.Validator, take})
		left.Sub(left, take)
	}

	if left.Sign() > 0 {
		moves = append(moves, planProportional(rest, left)...)
	}

	for _, move := range moves {
		if err := s.registry.DebitStake(move.Validator, move.Amount); err != nil {
			return nil, err
		}
	}
	if err := s.ledger.CreditReserve(amount); err != nil {
		return nil, err
	}
	return moves, nil
}

// IncreaseValidatorStake moves amount from the reserve to one validator.
func (s *Service) IncreaseValidatorStake(validator rock.Address, amount *big.Int) (*Move, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("amount must be positive")
	}
	if err := s.ledger.DebitReserve(amount); err != nil {
		return nil, err
	}
	if err := s.registry.CreditStake(validator, amount); err != nil {
		return nil, err
	}
	return &Move{validator, new(big.Int).Set(amount)}, nil
}

// DecreaseValidatorStake moves amount from one validator back to the
// reserve.
func (s *Service) DecreaseValidatorStake(validator rock.Address, amount *big.Int) (*Move, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("amount must be positive")
	}
	if err := s.registry.DebitStake(validator, amount); err != nil {
		return nil, err
	}
	if err := s.ledger.CreditReserve(amount); err != nil {
		return nil, err
	}
	return &Move{validator, new(big.Int).Set(amount)}, nil
}

// planAllocation fills candidates by remaining capacity, largest first,
// registry order breaking ties. It never plans beyond the caps.
func (s *Service) planAllocation(amount *big.Int) ([]Move, *big.Int, error) {
	entries, err := s.registry.List()
	if err != nil {
		return nil, nil, err
	}

	type candidate struct {
		validator rock.Address
		remaining *big.Int
	}
	var candidates []candidate
	for _, entry := range entries {
		remaining := entry.Remaining()
		if remaining.Sign() > 0 {
			candidates = append(candidates, candidate{entry.Validator, remaining})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].remaining.Cmp(candidates[j].remaining) > 0
	})

	left := new(big.Int).Set(amount)
	var moves []Move
	for _, c := range candidates {
		if left.Sign() == 0 {
			break
		}
		take := minBig(c.remaining, left)
		moves = append(moves, Move{c.validator, take})
		left.Sub(left, take)
	}
	return moves, new(big.Int).Sub(amount, left), nil
}

// apply moves the placed total out of the reserve and credits each
// validator.
func (s *Service) apply(moves []Move, placed *big.Int) error {
	if err := s.ledger.DebitReserve(placed); err != nil {
		return err
	}
	for _, move := range moves {
		if err := s.registry.CreditStake(move.Validator, move.Amount); err != nil {
			return err
		}
	}
	return nil
}

// planProportional splits need across entries proportionally to stake,
// flooring each share and handing rounding dust to the largest stakes
// first. need must not exceed the summed stake.
func planProportional(entries []*registry.Entry, need *big.Int) []Move {
	total := new(big.Int)
	for _, entry := range entries {
		total.Add(total, entry.Stake)
	}

	sorted := make([]*registry.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stake.Cmp(sorted[j].Stake) > 0
	})

	shares := make(map[rock.Address]*big.Int, len(sorted))
	dust := new(big.Int).Set(need)
	for _, entry := range sorted {
		share := new(big.Int).Mul(need, entry.Stake)
		share.Quo(share, total)
		shares[entry.Validator] = share
		dust.Sub(dust, share)
	}
	for _, entry := range sorted {
		if dust.Sign() == 0 {
			break
		}
		room := new(big.Int).Sub(entry.Stake, shares[entry.Validator])
		take := minBig(room, dust)
		if take.Sign() > 0 {
			shares[entry.Validator].Add(shares[entry.Validator], take)
			dust.Sub(dust, take)
		}
	}

	var moves []Move
	for _, entry := range sorted {
		if share := shares[entry.Validator]; share.Sign() > 0 {
			moves = append(moves, Move{entry.Validator, share})
		}
	}
	return moves
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
