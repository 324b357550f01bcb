// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stor

import (
	"github.com/rockpool-labs/rockpool/rock"
)

// Address is a wrapper for storage and retrieval of an address.
// The zero address reads back from an empty slot.
type Address struct {
	context *Context
	pos     rock.Bytes32
}

func NewAddress(context *Context, pos rock.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (rock.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.pool, a.pos)
	if err != nil {
		return rock.Address{}, err
	}
	return rock.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr *rock.Address) {
	var storage rock.Bytes32
	if addr != nil {
		storage = rock.BytesToBytes32(addr.Bytes())
	}
	a.context.state.SetStorage(a.context.pool, a.pos, storage)
}
