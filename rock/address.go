// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rock

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// AddressLength length of an address in bytes.
const AddressLength = common.AddressLength

// Address identifies pools, depositors, validators and derived accounts.
type Address common.Address

var (
	_ json.Marshaler   = (*Address)(nil)
	_ json.Unmarshaler = (*Address)(nil)
)

// String implements stringer.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns byte slice form of address.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero returns if the address has all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalJSON implements json.Marshaler.
func (a *Address) MarshalJSON() ([]byte, error) {
	if a == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return err
	}
	parsed, err := ParseAddress(hex)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

// ParseAddress converts a hex string, with or without the 0x prefix, into Address.
func ParseAddress(s string) (*Address, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != AddressLength*2 {
		return nil, errors.New("invalid length")
	}

	var addr Address
	if _, err := hex.Decode(addr[:], []byte(s)); err != nil {
		return nil, err
	}
	return &addr, nil
}

// MustParseAddress converts a hex string into Address, panic on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return *addr
}

// BytesToAddress converts a byte slice into Address.
// If b is longer than the address length, it is cropped from the left.
// If b is shorter, it is extended from the left.
func BytesToAddress(b []byte) Address {
	return Address(common.BytesToAddress(b))
}

// CreatePoolAddress derives the address of a pool from its creating
// authority and pool name. The derivation is stable, so recreating a pool
// with the same authority and name collides on purpose.
func CreatePoolAddress(authority Address, name string) Address {
	return BytesToAddress(Blake2b(poolDomain, authority.Bytes(), []byte(name)).Bytes()[12:])
}

// ReserveAddress derives the address identifying a pool's undelegated
// reserve bucket.
func ReserveAddress(pool Address) Address {
	return BytesToAddress(Blake2b(reserveDomain, pool.Bytes()).Bytes()[12:])
}

// FeeAccountAddress derives the share account receiving manager fees of a pool.
func FeeAccountAddress(pool Address) Address {
	return BytesToAddress(Blake2b(feeAccountDomain, pool.Bytes()).Bytes()[12:])
}
