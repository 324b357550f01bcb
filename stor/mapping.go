// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stor

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/qianbin/drlp"

	"github.com/rockpool-labs/rockpool/rock"
)

type Key interface {
	Bytes() []byte
}

// Ordinal adapts a list index to a mapping key, compactly encoded.
type Ordinal uint64

func (o Ordinal) Bytes() []byte {
	return drlp.AppendUint(nil, uint64(o))
}

// Mapping is a key/value storage abstraction, similar to the mapping in
// Solidity. Values are RLP encoded at blake2b(key, basePos) positions.
type Mapping[K Key, V any] struct {
	context *Context
	basePos rock.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos rock.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	position := rock.Blake2b(key.Bytes(), m.basePos.Bytes())
	err = m.context.state.DecodeStorage(m.context.pool, position, func(raw []byte) error {
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

func (m *Mapping[K, V]) Set(key K, value V) error {
	position := rock.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.pool, position, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Delete clears the slot of the given key entirely.
func (m *Mapping[K, V]) Delete(key K) error {
	position := rock.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.pool, position, func() ([]byte, error) {
		return nil, nil
	})
}
