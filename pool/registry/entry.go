// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/rockpool-labs/rockpool/rock"
)

type Status = uint8

const (
	StatusUnknown      = Status(iota) // 0 -> default value
	StatusActivating                  // added, stake transit not yet confirmed
	StatusActive                      // confirmed by an epoch boundary
	StatusDeactivating                // draining, no new allocations
	StatusInactive                    // terminal, permits removal
)

// StatusName returns the lowercase name of a status.
func StatusName(s Status) string {
	switch s {
	case StatusActivating:
		return "activating"
	case StatusActive:
		return "active"
	case StatusDeactivating:
		return "deactivating"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Entry is one registered validator of a pool. Entries form a doubly linked
// list through Prev/Next so listing keeps insertion order; the pointers are
// stored inside the entry to keep iteration to one read per validator.
type Entry struct {
	Validator rock.Address
	Cap       *big.Int // maximum delegation, stake never exceeds it
	Stake     *big.Int // currently delegated amount

	// transit bookkeeping, confirmed and cleared at epoch boundaries
	Activating   *big.Int
	Deactivating *big.Int

	Status    Status
	JoinEpoch uint64

	Prev *rock.Address `rlp:"nil"`
	Next *rock.Address `rlp:"nil"`
}

func (e *Entry) IsEmpty() bool {
	return e.Validator.IsZero() && e.Status == StatusUnknown
}

// Accepting reports whether the entry may receive new allocations.
func (e *Entry) Accepting() bool {
	return e.Status == StatusActivating || e.Status == StatusActive
}

// Remaining returns the unfilled capacity, never negative. Lowering the cap
// below the current stake makes the entry read as full.
func (e *Entry) Remaining() *big.Int {
	if !e.Accepting() {
		return new(big.Int)
	}
	rest := new(big.Int).Sub(e.Cap, e.Stake)
	if rest.Sign() < 0 {
		return new(big.Int)
	}
	return rest
}

func (e *Entry) isLinked() bool {
	return e.Prev != nil || e.Next != nil
}
