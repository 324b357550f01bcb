// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rock

// Constants of the coordinator.
const (
	// FeeBasis denominator of fee ratios expressed in basis points.
	FeeBasis uint64 = 10_000

	// MaxEpochFeeBps upper bound of the manager's cut on epoch rewards.
	MaxEpochFeeBps uint64 = 2_000
	// MaxDepositFeeBps upper bound of the share cut on deposits.
	MaxDepositFeeBps uint64 = 500

	// MaxValidators cap on registry size per pool.
	MaxValidators uint64 = 2_950

	// MaxPoolNameLength cap on pool name length in bytes.
	MaxPoolNameLength = 32

	// EpochPollInterval seconds between external epoch polls.
	EpochPollInterval uint64 = 10
)

// Address derivation domains.
var (
	poolDomain       = []byte("rockpool.pool")
	reserveDomain    = []byte("rockpool.reserve")
	feeAccountDomain = []byte("rockpool.fee-account")
)
