// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stor

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rockpool-labs/rockpool/rock"
)

// Raw is a wrapper for storage and retrieval of an RLP-encoded value at a
// fixed position. An empty slot reads back as the zero value.
type Raw[V any] struct {
	context *Context
	pos     rock.Bytes32
}

func NewRaw[V any](context *Context, pos rock.Bytes32) *Raw[V] {
	return &Raw[V]{context: context, pos: pos}
}

func (r *Raw[V]) Get() (value V, err error) {
	err = r.context.state.DecodeStorage(r.context.pool, r.pos, func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

func (r *Raw[V]) Set(value V) error {
	return r.context.state.EncodeStorage(r.context.pool, r.pos, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Clear empties the slot.
func (r *Raw[V]) Clear() error {
	return r.context.state.EncodeStorage(r.context.pool, r.pos, func() ([]byte, error) {
		return nil, nil
	})
}
