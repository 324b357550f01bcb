// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"math/big"

	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/rock"
)

// CreatePool is the body of a pool creation request.
type CreatePool struct {
	Name          string       `json:"name"`
	Manager       rock.Address `json:"manager"`
	EpochFeeBps   uint64       `json:"epochFeeBps"`
	DepositFeeBps uint64       `json:"depositFeeBps"`
}

// DepositRequest contributes value to the pool.
type DepositRequest struct {
	Depositor rock.Address `json:"depositor"`
	Amount    *big.Int     `json:"amount"`
}

// WithdrawRequest burns shares for value.
type WithdrawRequest struct {
	Depositor rock.Address `json:"depositor"`
	Shares    *big.Int     `json:"shares"`
}

// AddValidator registers a validator with a delegation cap.
type AddValidator struct {
	Validator rock.Address `json:"validator"`
	Cap       *big.Int     `json:"cap"`
}

// SetCap replaces a validator's delegation cap.
type SetCap struct {
	Cap *big.Int `json:"cap"`
}

// stake move and allocation operations
const (
	OpIncrease   = "increase"
	OpDecrease   = "decrease"
	OpAllocate   = "allocate"
	OpDeallocate = "deallocate"
)

// StakeMove moves stake between the reserve and one validator.
type StakeMove struct {
	Op     string   `json:"op"` // increase | decrease
	Amount *big.Int `json:"amount"`
}

// Allocation spreads stake over the registry or drains it back.
type Allocation struct {
	Op     string   `json:"op"` // allocate | deallocate
	Amount *big.Int `json:"amount"`
}

// ReconcileRequest settles the books against an externally observed epoch.
type ReconcileRequest struct {
	Epoch      uint64   `json:"epoch"`
	TotalValue *big.Int `json:"totalValue"`
}

// ReconcileResult reports whether the reconcile applied and the books after.
type ReconcileResult struct {
	Applied bool `json:"applied"`
}

// Rate is the exact share price plus a float approximation for humans.
type Rate struct {
	Value  *big.Int `json:"value"`
	Supply *big.Int `json:"supply"`
	Rate   float64  `json:"rate"`
}

// Validator is the wire form of a registry entry.
type Validator struct {
	Validator    rock.Address `json:"validator"`
	Cap          *big.Int     `json:"cap"`
	Stake        *big.Int     `json:"stake"`
	Activating   *big.Int     `json:"activating"`
	Deactivating *big.Int     `json:"deactivating"`
	Status       string       `json:"status"`
	JoinEpoch    uint64       `json:"joinEpoch"`
}

func convertValidator(e *registry.Entry) *Validator {
	return &Validator{
		Validator:    e.Validator,
		Cap:          e.Cap,
		Stake:        e.Stake,
		Activating:   e.Activating,
		Deactivating: e.Deactivating,
		Status:       registry.StatusName(e.Status),
		JoinEpoch:    e.JoinEpoch,
	}
}

func convertValidators(entries []*registry.Entry) []*Validator {
	vals := make([]*Validator, len(entries))
	for i, e := range entries {
		vals[i] = convertValidator(e)
	}
	return vals
}
