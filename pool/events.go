// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"

	"github.com/rockpool-labs/rockpool/pool/distributor"
	"github.com/rockpool-labs/rockpool/rock"
)

// Op names of committed pool operations, carried by events.
const (
	OpCreate              = "create"
	OpDeposit             = "deposit"
	OpWithdraw            = "withdraw"
	OpAddValidator        = "add-validator"
	OpRemoveValidator     = "remove-validator"
	OpDeactivateValidator = "deactivate-validator"
	OpSetValidatorCap     = "set-validator-cap"
	OpAllocate            = "allocate"
	OpDeallocate          = "deallocate"
	OpIncreaseStake       = "increase-validator-stake"
	OpDecreaseStake       = "decrease-validator-stake"
	OpReconcile           = "reconcile"
	OpImport              = "import"
)

// Event describes one committed pool operation. Events are published after
// the state change is durably committed, never for refused or failed
// operations.
type Event struct {
	Pool      rock.Address       `json:"pool"`
	Op        string             `json:"op"`
	Depositor *rock.Address      `json:"depositor,omitempty"`
	Validator *rock.Address      `json:"validator,omitempty"`
	Amount    *big.Int           `json:"amount,omitempty"`
	Shares    *big.Int           `json:"shares,omitempty"`
	Epoch     uint64             `json:"epoch,omitempty"`
	Moves     []distributor.Move `json:"moves,omitempty"`
}
