// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts carries the failed-precondition errors of pool operations.
// A revert means the operation was refused and no state was changed, as
// opposed to storage or transport failures.
package reverts

import (
	"errors"
)

// Kind tells revert reasons apart without string matching.
type Kind string

const (
	KindGeneric              Kind = "reverted"
	KindInsufficientShares   Kind = "insufficient_shares"
	KindInsufficientCapacity Kind = "insufficient_capacity"
	KindNoEligibleValidators Kind = "no_eligible_validators"
	KindNonZeroBalance       Kind = "non_zero_balance"
	KindStaleEpoch           Kind = "stale_epoch"
	KindExternalTimeout      Kind = "external_timeout"
)

type ErrRevert struct {
	kind    Kind
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{
		kind:    KindGeneric,
		message: message,
	}
}

func NewWithKind(kind Kind, message string) *ErrRevert {
	return &ErrRevert{
		kind:    kind,
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

// InsufficientShares signals a withdrawal of more shares than held.
func InsufficientShares(message string) *ErrRevert {
	return NewWithKind(KindInsufficientShares, message)
}

// InsufficientCapacity signals that validator caps cannot take the amount.
func InsufficientCapacity(message string) *ErrRevert {
	return NewWithKind(KindInsufficientCapacity, message)
}

// NoEligibleValidators signals an empty or fully saturated registry.
func NoEligibleValidators(message string) *ErrRevert {
	return NewWithKind(KindNoEligibleValidators, message)
}

// NonZeroBalance signals removal of a validator still holding stake.
func NonZeroBalance(message string) *ErrRevert {
	return NewWithKind(KindNonZeroBalance, message)
}

// StaleEpoch signals reconciliation against an already passed epoch.
func StaleEpoch(message string) *ErrRevert {
	return NewWithKind(KindStaleEpoch, message)
}

// ExternalTimeout signals a bounded external call that did not complete.
func ExternalTimeout(message string) *ErrRevert {
	return NewWithKind(KindExternalTimeout, message)
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// KindOf returns the revert kind of err, or an empty kind when err is not
// a revert.
func KindOf(err error) Kind {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.kind
	}
	return ""
}

// IsKind reports whether err is a revert of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
