// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/rockpool-labs/rockpool/rock"
)

func RandomHash() rock.Bytes32 {
	var b32 rock.Bytes32

	rand.Read(b32[:])
	return b32
}

func RandAddress() (addr rock.Address) {
	rand.Read(addr[:])
	return
}
