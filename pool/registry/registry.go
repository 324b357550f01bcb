// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry tracks the validators of a pool eligible to receive
// delegated stake, in insertion order, with per-validator caps and a
// four-state lifecycle.
package registry

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/stor"
)

var (
	slotEntries = nameToSlot("validators")
	slotHead    = nameToSlot("validators-head")
	slotTail    = nameToSlot("validators-tail")
	slotSize    = nameToSlot("validators-count")
)

func nameToSlot(name string) rock.Bytes32 {
	return rock.BytesToBytes32([]byte(name))
}

// Service reads and mutates the validator set of one pool.
type Service struct {
	entries *stor.Mapping[rock.Address, *Entry]
	head    *stor.Address
	tail    *stor.Address
	size    *stor.Uint64
}

// New creates a registry service bound to the context's pool.
func New(sctx *stor.Context) *Service {
	return &Service{
		entries: stor.NewMapping[rock.Address, *Entry](sctx, slotEntries),
		head:    stor.NewAddress(sctx, slotHead),
		tail:    stor.NewAddress(sctx, slotTail),
		size:    stor.NewUint64(sctx, slotSize),
	}
}

// Add registers a validator with the given cap. The entry starts in the
// activating state and joins the tail of the listing order.
func (s *Service) Add(validator rock.Address, cap *big.Int, epoch uint64) error {
	if validator.IsZero() {
		return reverts.New("validator must not be the zero address")
	}
	if cap == nil || cap.Sign() < 0 {
		return reverts.New("cap must not be negative")
	}
	existing, err := s.Get(validator)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return reverts.New("validator already registered")
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	if size >= rock.MaxValidators {
		return reverts.New("registry is full")
	}

	entry := &Entry{
		Validator:    validator,
		Cap:          new(big.Int).Set(cap),
		Stake:        new(big.Int),
		Activating:   new(big.Int),
		Deactivating: new(big.Int),
		Status:       StatusActivating,
		JoinEpoch:    epoch,
	}
	return s.listAppend(entry)
}

// Restore appends an entry verbatim, status and transit markers kept. This
// is the snapshot import path, it bypasses the lifecycle rules of Add.
func (s *Service) Restore(entry *Entry) error {
	if entry.Validator.IsZero() {
		return errors.New("restored validator must not be the zero address")
	}
	if entry.Status == StatusUnknown || entry.Status > StatusInactive {
		return errors.New("restored validator has an unknown status")
	}
	existing, err := s.Get(entry.Validator)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return errors.New("validator already registered")
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	if size >= rock.MaxValidators {
		return errors.New("registry is full")
	}

	cpy := *entry
	cpy.Prev = nil
	cpy.Next = nil
	for _, v := range []**big.Int{&cpy.Cap, &cpy.Stake, &cpy.Activating, &cpy.Deactivating} {
		if *v == nil {
			*v = new(big.Int)
		} else {
			*v = new(big.Int).Set(*v)
		}
	}
	return s.listAppend(&cpy)
}

// Get returns the entry of a validator; missing validators read back as an
// empty entry.
func (s *Service) Get(validator rock.Address) (*Entry, error) {
	entry, err := s.entries.Get(validator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator")
	}
	return entry, nil
}

// Existing returns the entry of a validator and reverts when unregistered.
func (s *Service) Existing(validator rock.Address) (*Entry, error) {
	entry, err := s.Get(validator)
	if err != nil {
		return nil, err
	}
	if entry.IsEmpty() {
		return nil, reverts.New("validator not registered")
	}
	return entry, nil
}

// List returns all entries in insertion order.
func (s *Service) List() ([]*Entry, error) {
	var out []*Entry
	cur, err := s.head.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get list head")
	}
	for !cur.IsZero() {
		entry, err := s.Get(cur)
		if err != nil {
			return nil, err
		}
		if entry.IsEmpty() {
			return nil, errors.New("registry list points at a missing entry")
		}
		out = append(out, entry)
		if entry.Next == nil {
			break
		}
		cur = *entry.Next
	}
	return out, nil
}

// Size returns the number of registered validators.
func (s *Service) Size() (uint64, error) {
	size, err := s.size.Get()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get registry size")
	}
	return size, nil
}

// SetCap changes the maximum delegation of a validator. Caps may be lowered
// below the current stake; the entry then reads as full.
func (s *Service) SetCap(validator rock.Address, cap *big.Int) error {
	if cap == nil || cap.Sign() < 0 {
		return reverts.New("cap must not be negative")
	}
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	entry.Cap = new(big.Int).Set(cap)
	return s.update(entry)
}

// Deactivate moves an accepting validator into the deactivating state. It
// stops receiving allocations and becomes the preferred source of
// deallocations until its stake drains.
func (s *Service) Deactivate(validator rock.Address) error {
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	if !entry.Accepting() {
		return reverts.New("validator not active")
	}
	entry.Status = StatusDeactivating
	return s.update(entry)
}

// Remove unregisters a validator. Entries still holding stake revert with
// a non-zero balance; the lifecycle must have reached inactive.
func (s *Service) Remove(validator rock.Address) error {
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	if entry.Stake.Sign() > 0 {
		return reverts.NonZeroBalance("validator still holds delegated stake")
	}
	if entry.Status != StatusInactive {
		return reverts.New("validator not inactive")
	}
	if err := s.listUnlink(entry); err != nil {
		return err
	}
	if err := s.entries.Delete(validator); err != nil {
		return errors.Wrap(err, "failed to delete validator")
	}
	return nil
}

// CreditStake delegates amount to a validator. The entry must accept
// allocations and stay within its cap; the amount is marked activating
// until the next epoch boundary confirms it.
func (s *Service) CreditStake(validator rock.Address, amount *big.Int) error {
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	if !entry.Accepting() {
		return reverts.New("validator not accepting stake")
	}
	stake := new(big.Int).Add(entry.Stake, amount)
	if stake.Cmp(entry.Cap) > 0 {
		return reverts.InsufficientCapacity("allocation exceeds validator cap")
	}
	entry.Stake = stake
	entry.Activating = new(big.Int).Add(entry.Activating, amount)
	return s.update(entry)
}

// DebitStake reclaims amount from a validator into the caller's hands. The
// amount is marked deactivating until the next epoch boundary confirms it.
func (s *Service) DebitStake(validator rock.Address, amount *big.Int) error {
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	if entry.Stake.Cmp(amount) < 0 {
		return reverts.New("insufficient validator stake")
	}
	entry.Stake = new(big.Int).Sub(entry.Stake, amount)
	if entry.Activating.Cmp(entry.Stake) > 0 {
		entry.Activating = new(big.Int).Set(entry.Stake)
	}
	entry.Deactivating = new(big.Int).Add(entry.Deactivating, amount)
	return s.update(entry)
}

// SlashStake removes amount from a validator without transit bookkeeping.
// This is the loss path of epoch reconciliation.
func (s *Service) SlashStake(validator rock.Address, amount *big.Int) error {
	entry, err := s.Existing(validator)
	if err != nil {
		return err
	}
	if entry.Stake.Cmp(amount) < 0 {
		return reverts.New("insufficient validator stake")
	}
	entry.Stake = new(big.Int).Sub(entry.Stake, amount)
	if entry.Activating.Cmp(entry.Stake) > 0 {
		entry.Activating = new(big.Int).Set(entry.Stake)
	}
	return s.update(entry)
}

// ConfirmEpoch settles transit bookkeeping at an epoch boundary:
// activating entries become active, drained deactivating entries become
// inactive and both transit markers reset. It returns the number of
// entries whose status changed.
func (s *Service) ConfirmEpoch() (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, entry := range entries {
		dirty := false
		if entry.Activating.Sign() > 0 {
			entry.Activating = new(big.Int)
			dirty = true
		}
		if entry.Deactivating.Sign() > 0 {
			entry.Deactivating = new(big.Int)
			dirty = true
		}
		switch entry.Status {
		case StatusActivating:
			entry.Status = StatusActive
			changed++
			dirty = true
		case StatusDeactivating:
			if entry.Stake.Sign() == 0 {
				entry.Status = StatusInactive
				changed++
				dirty = true
			}
		}
		if dirty {
			if err := s.update(entry); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// TotalStake sums the delegated stake over all entries.
func (s *Service) TotalStake() (*big.Int, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, entry := range entries {
		total.Add(total, entry.Stake)
	}
	return total, nil
}

func (s *Service) update(entry *Entry) error {
	if err := s.entries.Set(entry.Validator, entry); err != nil {
		return errors.Wrap(err, "failed to set validator")
	}
	return nil
}

// listAppend links a new entry at the tail and stores it.
func (s *Service) listAppend(entry *Entry) error {
	tail, err := s.tail.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get list tail")
	}
	if tail.IsZero() {
		// the list is currently empty, the entry becomes head and tail
		s.head.Set(&entry.Validator)
		s.tail.Set(&entry.Validator)
	} else {
		tailEntry, err := s.Get(tail)
		if err != nil {
			return err
		}
		if tailEntry.IsEmpty() {
			return errors.New("list tail points at a missing entry")
		}
		tailEntry.Next = &entry.Validator
		if err := s.update(tailEntry); err != nil {
			return err
		}
		prev := tail
		entry.Prev = &prev
		s.tail.Set(&entry.Validator)
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	s.size.Set(size + 1)
	return s.update(entry)
}

// listUnlink reconnects the neighbours of an entry and clears its pointers.
func (s *Service) listUnlink(entry *Entry) error {
	if !entry.isLinked() {
		head, err := s.head.Get()
		if err != nil {
			return errors.Wrap(err, "failed to get list head")
		}
		if head != entry.Validator {
			// not in the list
			return nil
		}
		// sole element, fall through to reset head and tail
	}

	if entry.Prev == nil {
		s.head.Set(entry.Next)
	} else {
		prevEntry, err := s.Get(*entry.Prev)
		if err != nil {
			return err
		}
		if prevEntry.IsEmpty() {
			return errors.New("prev entry is empty")
		}
		prevEntry.Next = entry.Next
		if err := s.update(prevEntry); err != nil {
			return err
		}
	}

	if entry.Next == nil {
		s.tail.Set(entry.Prev)
	} else {
		nextEntry, err := s.Get(*entry.Next)
		if err != nil {
			return err
		}
		if nextEntry.IsEmpty() {
			return errors.New("next entry is empty")
		}
		nextEntry.Prev = entry.Prev
		if err := s.update(nextEntry); err != nil {
			return err
		}
	}

	entry.Prev = nil
	entry.Next = nil

	size, err := s.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		return errors.New("registry size is already 0")
	}
	s.size.Set(size - 1)
	return nil
}
