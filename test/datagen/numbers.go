// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"math/big"
	mathrand "math/rand/v2"
)

func RandIntN(n int) int {
	return mathrand.N(n) //#nosec G404
}

// RandAmount picks a stake amount in [1, maxUnits].
func RandAmount(maxUnits int64) *big.Int {
	return big.NewInt(1 + mathrand.Int64N(maxUnits)) //#nosec G404
}
