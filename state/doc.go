// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages the durable storage of stake pools.
// It follows the flow as below:
//
//	          o
//	          |
//	 [ revertable state ]
//	          |
//	   [ stacked map ] -> [ journal ] -> [ staging ] -> [ key-value store ]
//	          |
//	   [ read cache ]
//	          |
//	 [ key-value store ]
//
// Values are keyed by (pool address, slot) and stay in memory until a
// stage is committed.
package state
