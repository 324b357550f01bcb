// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package depositdb

import (
	"fmt"
	"math/big"

	"github.com/rockpool-labs/rockpool/rock"
)

// Kind tells deposits and withdrawals apart in the journal.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// Record is one committed deposit or withdrawal. Sequence is assigned by
// the journal on insert.
type Record struct {
	Sequence  uint64       `json:"sequence"`
	Pool      rock.Address `json:"pool"`
	Depositor rock.Address `json:"depositor"`
	Kind      Kind         `json:"kind"`
	Amount    *big.Int     `json:"amount"`
	Shares    *big.Int     `json:"shares"`
	Epoch     uint64       `json:"epoch"`
	Timestamp uint64       `json:"timestamp"`
}

func (r *Record) String() string {
	return fmt.Sprintf("Record(seq=%v pool=%v depositor=%v kind=%v amount=%v shares=%v epoch=%v ts=%v)",
		r.Sequence,
		r.Pool,
		r.Depositor,
		r.Kind,
		r.Amount,
		r.Shares,
		r.Epoch,
		r.Timestamp)
}

// RangeType selects which column a Range bounds.
type RangeType string

const (
	Epoch RangeType = "Epoch"
	Time  RangeType = "Time"
)

// OrderType sorts query results by sequence.
type OrderType string

const (
	ASC  OrderType = "ASC"
	DESC OrderType = "DESC"
)

// Range bounds one column inclusively on both ends. Bounds bind as sqlite
// integers, so they must stay within the int64 range.
type Range struct {
	Unit RangeType `json:"unit"`
	From uint64    `json:"from"`
	To   uint64    `json:"to"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Filter narrows journal queries. Nil members match everything.
type Filter struct {
	Pool      *rock.Address `json:"pool"`
	Depositor *rock.Address `json:"depositor"`
	Kind      Kind          `json:"kind"` // empty matches both kinds
	Order     OrderType     `json:"order"`
	Range     *Range        `json:"range"`
	Options   *Options      `json:"options"`
}
