// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rock

import (
	"hash"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// digester recycles the states of one 256-bit hash algorithm.
type digester struct {
	pool sync.Pool
}

func newDigester(construct func() hash.Hash) *digester {
	return &digester{
		pool: sync.Pool{
			New: func() any {
				return &digestState{Hash: construct()}
			},
		},
	}
}

// digestState carries the output array with the hash state, so summing
// into it costs no allocation.
type digestState struct {
	hash.Hash
	out Bytes32
}

func (d *digester) sum(fn func(w io.Writer)) Bytes32 {
	st := d.pool.Get().(*digestState)
	fn(st)
	st.Sum(st.out[:0])
	h := st.out // copy out before the state returns to the pool
	st.Reset()
	d.pool.Put(st)
	return h
}

var (
	blake2bDigests = newDigester(NewBlake2b)
	keccakDigests  = newDigester(func() hash.Hash { return sha3.NewLegacyKeccak256() })
)

// NewBlake2b returns a blake2b-256 hasher, the digest of the coordinator.
func NewBlake2b() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// Blake2b computes the blake2b-256 digest of the concatenation of data.
func Blake2b(data ...[]byte) Bytes32 {
	if len(data) == 1 {
		return blake2b.Sum256(data[0])
	}
	return Blake2bFn(func(w io.Writer) {
		for _, b := range data {
			w.Write(b)
		}
	})
}

// Blake2bFn computes the blake2b-256 digest of whatever fn writes.
func Blake2bFn(fn func(w io.Writer)) Bytes32 {
	return blake2bDigests.sum(fn)
}

// Keccak256 computes the keccak-256 digest of the concatenation of data.
// Used where compatibility with secp256k1 key material matters, e.g.
// deriving the authority address from its public key.
func Keccak256(data ...[]byte) Bytes32 {
	return keccakDigests.sum(func(w io.Writer) {
		for _, b := range data {
			w.Write(b)
		}
	})
}
