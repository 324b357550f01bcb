// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cry implements the recoverable signature scheme used for snapshot
// manifests and other pool authority attestations.
package cry

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/rock"
)

// SignatureLength is the byte length of a compact recoverable signature.
const SignatureLength = 65

// Sign produces a compact recoverable signature of the 32-byte digest.
// The private key is the raw 32-byte scalar, as stored by geth keystores.
func Sign(msgHash rock.Bytes32, privateKey []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, errors.New("invalid private key length")
	}
	priv := secp256k1.PrivKeyFromBytes(privateKey)
	return ecdsa.SignCompact(priv, msgHash.Bytes(), false), nil
}

// Signer extracts the signing address from a compact signature.
func Signer(msgHash rock.Bytes32, sig []byte) (rock.Address, error) {
	if len(sig) != SignatureLength {
		return rock.Address{}, errors.New("invalid signature length")
	}
	pub, _, err := ecdsa.RecoverCompact(sig, msgHash.Bytes())
	if err != nil {
		return rock.Address{}, errors.Wrap(err, "recover signer")
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the address of a public key, the last 20 bytes
// of the keccak256 of the uncompressed key. It matches the derivation used
// by geth keystores, so keystore keys sign for their displayed address.
func PubkeyToAddress(pub *secp256k1.PublicKey) rock.Address {
	h := rock.Keccak256(pub.SerializeUncompressed()[1:])
	return rock.BytesToAddress(h.Bytes()[12:])
}
