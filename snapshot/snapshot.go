// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package snapshot moves a pool's complete books in and out of a node as a
// stream of compressed frames sealed by the pool manager's signature.
//
// A snapshot starts with a magic marker, followed by one meta frame, the
// share accounts, the validator entries and finally a manifest carrying the
// blake2b digest of everything before it plus the manager's signature over
// that digest. Each frame is a snappy-compressed RLP record keyed by its
// ordinal, so truncated or reordered streams fail fast.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/qianbin/drlp"

	"github.com/rockpool-labs/rockpool/cry"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/registry"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/state"
	"github.com/rockpool-labs/rockpool/stor"
)

var magic = [8]byte{'r', 'o', 'c', 'k', 's', 'n', 'a', 'p'}

// frames stay small, a larger length marks a corrupt stream
const maxFrameSize = 4 * 1024 * 1024

// SignFunc seals a snapshot digest with the pool manager's key.
type SignFunc func(digest rock.Bytes32) ([]byte, error)

// Progress reports content frames as they are written or read.
type Progress func(done, total uint64)

// Meta is the first frame: the pool identity plus the aggregate figures and
// the frame counts of the sections that follow.
type Meta struct {
	Pool        rock.Address
	Info        ledger.Info
	TotalValue  *big.Int
	ShareSupply *big.Int
	Reserve     *big.Int
	LastEpoch   uint64
	Accounts    uint64
	Validators  uint64
}

// Manifest is the final frame sealing the stream.
type Manifest struct {
	Digest    rock.Bytes32
	Signature []byte

	// Signer is recovered from the signature, never serialized.
	Signer rock.Address `rlp:"-"`
}

type record struct {
	Key  []byte
	Body []byte
}

type validatorRecord struct {
	Validator    rock.Address
	Cap          *big.Int
	Stake        *big.Int
	Activating   *big.Int
	Deactivating *big.Int
	Status       uint8
	JoinEpoch    uint64
}

// Export writes the pool's books to w and returns the sealed manifest.
// It reads through the given state as-is; callers wanting a consistent
// picture pass a state nothing else writes to.
func Export(st *state.State, poolAddr rock.Address, w io.Writer, sign SignFunc, progress Progress) (*Manifest, error) {
	sctx := stor.NewContext(poolAddr, st)
	led := ledger.New(sctx)
	reg := registry.New(sctx)

	exists, err := led.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("pool not found")
	}

	info, err := led.Info()
	if err != nil {
		return nil, err
	}
	total, err := led.TotalValue()
	if err != nil {
		return nil, err
	}
	supply, err := led.ShareSupply()
	if err != nil {
		return nil, err
	}
	reserve, err := led.Reserve()
	if err != nil {
		return nil, err
	}
	lastEpoch, err := led.LastEpoch()
	if err != nil {
		return nil, err
	}
	accounts, err := led.Accounts()
	if err != nil {
		return nil, err
	}
	entries, err := reg.List()
	if err != nil {
		return nil, err
	}

	meta := &Meta{
		Pool:        poolAddr,
		Info:        *info,
		TotalValue:  total,
		ShareSupply: supply,
		Reserve:     reserve,
		LastEpoch:   lastEpoch,
		Accounts:    uint64(len(accounts)),
		Validators:  uint64(len(entries)),
	}
	frames := 1 + meta.Accounts + meta.Validators

	// everything before the manifest flows through the digest
	h := rock.NewBlake2b()
	hw := io.MultiWriter(w, h)

	if _, err := hw.Write(magic[:]); err != nil {
		return nil, errors.Wrap(err, "write magic")
	}
	seq := uint64(0)
	tick := func() {
		seq++
		if progress != nil {
			progress(seq, frames)
		}
	}

	if err := writeFrame(hw, seq, meta); err != nil {
		return nil, err
	}
	tick()
	for _, account := range accounts {
		if err := writeFrame(hw, seq, account); err != nil {
			return nil, err
		}
		tick()
	}
	for _, entry := range entries {
		rec := &validatorRecord{
			Validator:    entry.Validator,
			Cap:          entry.Cap,
			Stake:        entry.Stake,
			Activating:   entry.Activating,
			Deactivating: entry.Deactivating,
			Status:       entry.Status,
			JoinEpoch:    entry.JoinEpoch,
		}
		if err := writeFrame(hw, seq, rec); err != nil {
			return nil, err
		}
		tick()
	}

	var digest rock.Bytes32
	h.Sum(digest[:0])

	sig, err := sign(digest)
	if err != nil {
		return nil, errors.Wrap(err, "sign manifest")
	}
	signer, err := cry.Signer(digest, sig)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{Digest: digest, Signature: sig, Signer: signer}
	if err := writeFrame(w, seq, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Import restores a pool from r into the given state. All writes stay
// uncommitted; on any error the caller discards the state, so a bad stream
// leaves nothing behind. The stream digest must check out and the manifest
// must be signed by the pool's manager.
func Import(st *state.State, r io.Reader, progress Progress) (*Meta, error) {
	h := rock.NewBlake2b()
	tr := io.TeeReader(r, h)

	var m [8]byte
	if _, err := io.ReadFull(tr, m[:]); err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if m != magic {
		return nil, errors.New("not a pool snapshot")
	}

	seq := uint64(0)
	var meta Meta
	if err := readFrame(tr, seq, &meta); err != nil {
		return nil, err
	}
	seq++
	if meta.Validators > rock.MaxValidators {
		return nil, errors.New("snapshot exceeds the validator limit")
	}
	if meta.Pool != rock.CreatePoolAddress(meta.Info.Manager, meta.Info.Name) {
		return nil, errors.New("pool address does not match its identity")
	}
	frames := 1 + meta.Accounts + meta.Validators

	sctx := stor.NewContext(meta.Pool, st)
	led := ledger.New(sctx)
	reg := registry.New(sctx)

	if err := led.Initialize(&meta.Info); err != nil {
		return nil, err
	}
	if err := led.RestoreFigures(meta.TotalValue, meta.ShareSupply, meta.Reserve, meta.LastEpoch); err != nil {
		return nil, err
	}

	heldShares := new(big.Int)
	for i := uint64(0); i < meta.Accounts; i++ {
		var account ledger.Account
		if err := readFrame(tr, seq, &account); err != nil {
			return nil, err
		}
		if err := led.RestoreAccount(account.Depositor, account.Shares); err != nil {
			return nil, err
		}
		heldShares.Add(heldShares, account.Shares)
		seq++
		if progress != nil {
			progress(seq, frames)
		}
	}

	staked := new(big.Int)
	for i := uint64(0); i < meta.Validators; i++ {
		var rec validatorRecord
		if err := readFrame(tr, seq, &rec); err != nil {
			return nil, err
		}
		err := reg.Restore(&registry.Entry{
			Validator:    rec.Validator,
			Cap:          rec.Cap,
			Stake:        rec.Stake,
			Activating:   rec.Activating,
			Deactivating: rec.Deactivating,
			Status:       rec.Status,
			JoinEpoch:    rec.JoinEpoch,
		})
		if err != nil {
			return nil, err
		}
		staked.Add(staked, rec.Stake)
		seq++
		if progress != nil {
			progress(seq, frames)
		}
	}

	var digest rock.Bytes32
	h.Sum(digest[:0])

	// the manifest is read outside the digest
	var manifest Manifest
	if err := readFrame(r, seq, &manifest); err != nil {
		return nil, err
	}
	if manifest.Digest != digest {
		return nil, errors.New("snapshot digest mismatch")
	}
	signer, err := cry.Signer(digest, manifest.Signature)
	if err != nil {
		return nil, err
	}
	if signer != meta.Info.Manager {
		return nil, errors.New("snapshot not signed by the pool manager")
	}

	// the restored books must conserve value and shares
	if new(big.Int).Add(meta.Reserve, staked).Cmp(meta.TotalValue) != 0 {
		return nil, errors.New("restored books do not conserve value")
	}
	if heldShares.Cmp(meta.ShareSupply) != 0 {
		return nil, errors.New("restored accounts do not match the share supply")
	}
	return &meta, nil
}

func writeFrame(w io.Writer, seq uint64, payload interface{}) error {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return errors.Wrap(err, "encode frame body")
	}
	enc, err := rlp.EncodeToBytes(&record{
		Key:  drlp.AppendUint(nil, seq),
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	frame := snappy.Encode(nil, enc)

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(frame)))
	if _, err := w.Write(size[:]); err != nil {
		return errors.Wrap(err, "write frame size")
	}
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

func readFrame(r io.Reader, seq uint64, payload interface{}) error {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return errors.Wrap(err, "read frame size")
	}
	n := binary.BigEndian.Uint32(size[:])
	if n == 0 || n > maxFrameSize {
		return errors.New("invalid frame size")
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return errors.Wrap(err, "read frame")
	}
	dec, err := snappy.Decode(nil, frame)
	if err != nil {
		return errors.Wrap(err, "decompress frame")
	}
	var rec record
	if err := rlp.DecodeBytes(dec, &rec); err != nil {
		return errors.Wrap(err, "decode frame")
	}
	if !bytes.Equal(rec.Key, drlp.AppendUint(nil, seq)) {
		return errors.New("frame out of order")
	}
	if err := rlp.DecodeBytes(rec.Body, payload); err != nil {
		return errors.Wrap(err, "decode frame body")
	}
	return nil
}
