// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger keeps the books of one pool: total underlying value, share
// supply, the undelegated reserve and per-depositor share accounts. All
// amounts are integers; conversions floor in both directions so rounding
// never pays out more than came in.
package ledger

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/stor"
)

var (
	slotInfo        = nameToSlot("pool-info")
	slotTotalValue  = nameToSlot("total-value")
	slotShareSupply = nameToSlot("share-supply")
	slotReserve     = nameToSlot("reserve")
	slotLastEpoch   = nameToSlot("last-reconciled-epoch")
	slotShares      = nameToSlot("share-accounts")
	slotHolderCount = nameToSlot("share-holder-count")
	slotHolderList  = nameToSlot("share-holder-list")
	slotHolderSeen  = nameToSlot("share-holder-seen")
)

func nameToSlot(name string) rock.Bytes32 {
	return rock.BytesToBytes32([]byte(name))
}

// Info is the immutable identity of a pool, written once at creation.
type Info struct {
	Name          string
	Manager       rock.Address
	EpochFeeBps   uint64
	DepositFeeBps uint64
	CreatedEpoch  uint64
}

func (i *Info) IsEmpty() bool {
	return i.Name == "" && i.Manager.IsZero()
}

// Service reads and mutates the ledger slots of one pool.
type Service struct {
	info        *stor.Raw[*Info]
	totalValue  *stor.Uint256
	shareSupply *stor.Uint256
	reserve     *stor.Uint256
	lastEpoch   *stor.Uint64
	shares      *stor.Mapping[rock.Address, *big.Int]
	holderCount *stor.Uint64
	holderAt    *stor.Mapping[stor.Ordinal, rock.Address]
	holderSeen  *stor.Mapping[rock.Address, bool]
}

// New creates a ledger service bound to the context's pool.
func New(sctx *stor.Context) *Service {
	return &Service{
		info:        stor.NewRaw[*Info](sctx, slotInfo),
		totalValue:  stor.NewUint256(sctx, slotTotalValue),
		shareSupply: stor.NewUint256(sctx, slotShareSupply),
		reserve:     stor.NewUint256(sctx, slotReserve),
		lastEpoch:   stor.NewUint64(sctx, slotLastEpoch),
		shares:      stor.NewMapping[rock.Address, *big.Int](sctx, slotShares),
		holderCount: stor.NewUint64(sctx, slotHolderCount),
		holderAt:    stor.NewMapping[stor.Ordinal, rock.Address](sctx, slotHolderList),
		holderSeen:  stor.NewMapping[rock.Address, bool](sctx, slotHolderSeen),
	}
}

// Initialize writes the pool identity. It fails if the pool already exists
// or any parameter is out of bounds.
func (s *Service) Initialize(info *Info) error {
	existing, err := s.Info()
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return reverts.New("pool already exists")
	}
	if info.Name == "" || len(info.Name) > rock.MaxPoolNameLength {
		return reverts.New("invalid pool name")
	}
	if info.Manager.IsZero() {
		return reverts.New("manager must not be the zero address")
	}
	if info.EpochFeeBps > rock.MaxEpochFeeBps {
		return reverts.New("epoch fee above maximum")
	}
	if info.DepositFeeBps > rock.MaxDepositFeeBps {
		return reverts.New("deposit fee above maximum")
	}
	if err := s.info.Set(info); err != nil {
		return errors.Wrap(err, "failed to set pool info")
	}
	s.lastEpoch.Set(info.CreatedEpoch)
	return nil
}

// Info returns the pool identity. A missing pool reads back as an
// empty Info, see Exists.
func (s *Service) Info() (*Info, error) {
	info, err := s.info.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool info")
	}
	return info, nil
}

// Exists reports whether the pool has been initialized.
func (s *Service) Exists() (bool, error) {
	info, err := s.Info()
	if err != nil {
		return false, err
	}
	return !info.IsEmpty(), nil
}

func (s *Service) TotalValue() (*big.Int, error) {
	v, err := s.totalValue.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get total value")
	}
	return v, nil
}

func (s *Service) ShareSupply() (*big.Int, error) {
	v, err := s.shareSupply.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get share supply")
	}
	return v, nil
}

// Reserve returns the undelegated buffer. Deposits land here and
// withdrawals are paid from here.
func (s *Service) Reserve() (*big.Int, error) {
	v, err := s.reserve.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reserve")
	}
	return v, nil
}

// LastEpoch returns the most recently reconciled epoch.
func (s *Service) LastEpoch() (uint64, error) {
	v, err := s.lastEpoch.Get()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get last epoch")
	}
	return v, nil
}

func (s *Service) SetLastEpoch(epoch uint64) {
	s.lastEpoch.Set(epoch)
}

// SharesOf returns the share holding of one depositor.
func (s *Service) SharesOf(depositor rock.Address) (*big.Int, error) {
	v, err := s.shares.Get(depositor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get share account")
	}
	if v == nil {
		return new(big.Int), nil
	}
	return v, nil
}

// Account is one depositor's share holding.
type Account struct {
	Depositor rock.Address `json:"depositor"`
	Shares    *big.Int     `json:"shares"`
}

// Accounts lists every share account with a non-zero holding, in the order
// holders first took shares.
func (s *Service) Accounts() ([]*Account, error) {
	count, err := s.holderCount.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get holder count")
	}
	accounts := make([]*Account, 0, count)
	for i := uint64(0); i < count; i++ {
		depositor, err := s.holderAt.Get(stor.Ordinal(i))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get holder")
		}
		shares, err := s.SharesOf(depositor)
		if err != nil {
			return nil, err
		}
		if shares.Sign() == 0 {
			continue
		}
		accounts = append(accounts, &Account{Depositor: depositor, Shares: shares})
	}
	return accounts, nil
}

// Rate returns the exchange rate as the exact rational value/supply.
// An empty pool reads as 1/1.
func (s *Service) Rate() (value *big.Int, supply *big.Int, err error) {
	supply, err = s.ShareSupply()
	if err != nil {
		return nil, nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(1), big.NewInt(1), nil
	}
	value, err = s.TotalValue()
	if err != nil {
		return nil, nil, err
	}
	return value, supply, nil
}

// ConvertToShares returns the shares matching amount at the current rate,
// floored. With zero supply the rate is 1:1. A pool whose value was wholly
// slashed cannot price new deposits against the surviving shares and
// reverts.
func (s *Service) ConvertToShares(amount *big.Int) (*big.Int, error) {
	value, supply, err := s.Rate()
	if err != nil {
		return nil, err
	}
	if value.Sign() == 0 {
		return nil, reverts.New("pool value exhausted")
	}
	shares := new(big.Int).Mul(amount, supply)
	return shares.Quo(shares, value), nil
}

// ConvertToAmount returns the stake value matching shares at the current
// rate, floored.
func (s *Service) ConvertToAmount(shares *big.Int) (*big.Int, error) {
	value, supply, err := s.Rate()
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Mul(shares, value)
	return amount.Quo(amount, supply), nil
}

// Deposit converts amount into shares at the current rate and credits the
// depositor, minus the deposit fee which is minted to the manager. The
// contributed value lands in the reserve. It returns the net shares issued
// to the depositor.
func (s *Service) Deposit(depositor rock.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("deposit amount must be positive")
	}
	shares, err := s.ConvertToShares(amount)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, reverts.New("deposit too small for current rate")
	}

	info, err := s.Info()
	if err != nil {
		return nil, err
	}
	fee := new(big.Int).Mul(shares, new(big.Int).SetUint64(info.DepositFeeBps))
	fee.Quo(fee, new(big.Int).SetUint64(rock.FeeBasis))
	net := new(big.Int).Sub(shares, fee)

	if err := s.credit(depositor, net); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := s.credit(info.Manager, fee); err != nil {
			return nil, err
		}
	}
	if err := s.shareSupply.Add(shares); err != nil {
		return nil, errors.Wrap(err, "failed to grow share supply")
	}
	if err := s.totalValue.Add(amount); err != nil {
		return nil, errors.Wrap(err, "failed to grow total value")
	}
	if err := s.reserve.Add(amount); err != nil {
		return nil, errors.Wrap(err, "failed to grow reserve")
	}
	return net, nil
}

// Withdraw burns shares of the depositor and returns the matching amount,
// floored. The amount is paid from the reserve; callers reclaim validator
// stake beforehand when the reserve is short.
func (s *Service) Withdraw(depositor rock.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, reverts.New("share amount must be positive")
	}
	holding, err := s.SharesOf(depositor)
	if err != nil {
		return nil, err
	}
	if holding.Cmp(shares) < 0 {
		return nil, reverts.InsufficientShares("share account holds less than requested")
	}
	amount, err := s.ConvertToAmount(shares)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, reverts.New("withdrawal too small for current rate")
	}
	reserve, err := s.Reserve()
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(amount) < 0 {
		return nil, reverts.New("insufficient reserve to pay withdrawal")
	}

	if err := s.debit(depositor, shares); err != nil {
		return nil, err
	}
	if err := s.shareSupply.Sub(shares); err != nil {
		return nil, errors.Wrap(err, "failed to shrink share supply")
	}
	if err := s.totalValue.Sub(amount); err != nil {
		return nil, errors.Wrap(err, "failed to shrink total value")
	}
	if err := s.reserve.Sub(amount); err != nil {
		return nil, errors.Wrap(err, "failed to shrink reserve")
	}
	return amount, nil
}

// MintShares grows the share supply and credits the receiver without adding
// value. This is the epoch fee path, it dilutes every other holder.
func (s *Service) MintShares(to rock.Address, shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return reverts.New("minted shares must be positive")
	}
	if err := s.credit(to, shares); err != nil {
		return err
	}
	if err := s.shareSupply.Add(shares); err != nil {
		return errors.Wrap(err, "failed to grow share supply")
	}
	return nil
}

// CreditReserve moves amount into the reserve, total value unchanged.
func (s *Service) CreditReserve(amount *big.Int) error {
	if err := s.reserve.Add(amount); err != nil {
		return errors.Wrap(err, "failed to credit reserve")
	}
	return nil
}

// DebitReserve moves amount out of the reserve, total value unchanged.
func (s *Service) DebitReserve(amount *big.Int) error {
	reserve, err := s.Reserve()
	if err != nil {
		return err
	}
	if reserve.Cmp(amount) < 0 {
		return reverts.New("insufficient reserve")
	}
	if err := s.reserve.Sub(amount); err != nil {
		return errors.Wrap(err, "failed to debit reserve")
	}
	return nil
}

// ApplyReward adds epoch rewards to the books. Rewards accrue to the
// reserve until explicitly re-staked.
func (s *Service) ApplyReward(delta *big.Int) error {
	if err := s.totalValue.Add(delta); err != nil {
		return errors.Wrap(err, "failed to apply reward to total value")
	}
	return s.CreditReserve(delta)
}

// ApplyLoss removes value from the books, the reserve absorbing as much as
// it can. It returns the portion covered by the reserve; callers slash the
// remainder from validator stakes to keep the books conserved.
func (s *Service) ApplyLoss(delta *big.Int) (*big.Int, error) {
	total, err := s.TotalValue()
	if err != nil {
		return nil, err
	}
	if total.Cmp(delta) < 0 {
		return nil, reverts.New("loss exceeds pool value")
	}
	if err := s.totalValue.Sub(delta); err != nil {
		return nil, errors.Wrap(err, "failed to apply loss to total value")
	}
	reserve, err := s.Reserve()
	if err != nil {
		return nil, err
	}
	fromReserve := new(big.Int).Set(delta)
	if reserve.Cmp(fromReserve) < 0 {
		fromReserve.Set(reserve)
	}
	if fromReserve.Sign() > 0 {
		if err := s.reserve.Sub(fromReserve); err != nil {
			return nil, errors.Wrap(err, "failed to apply loss to reserve")
		}
	}
	return fromReserve, nil
}

func (s *Service) credit(addr rock.Address, shares *big.Int) error {
	holding, err := s.SharesOf(addr)
	if err != nil {
		return err
	}
	if err := s.enroll(addr); err != nil {
		return err
	}
	if err := s.shares.Set(addr, new(big.Int).Add(holding, shares)); err != nil {
		return errors.Wrap(err, "failed to credit share account")
	}
	return nil
}

// enroll records addr in the holder index the first time it takes shares.
// The index only ever grows, drained accounts keep their slot.
func (s *Service) enroll(addr rock.Address) error {
	seen, err := s.holderSeen.Get(addr)
	if err != nil {
		return errors.Wrap(err, "failed to get holder marker")
	}
	if seen {
		return nil
	}
	count, err := s.holderCount.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get holder count")
	}
	if err := s.holderAt.Set(stor.Ordinal(count), addr); err != nil {
		return errors.Wrap(err, "failed to append holder")
	}
	s.holderCount.Set(count + 1)
	if err := s.holderSeen.Set(addr, true); err != nil {
		return errors.Wrap(err, "failed to set holder marker")
	}
	return nil
}

// RestoreFigures writes the aggregate slots verbatim. This is the snapshot
// import path, the importer verifies the restored books as a whole.
func (s *Service) RestoreFigures(total, supply, reserve *big.Int, lastEpoch uint64) error {
	if total == nil || supply == nil || reserve == nil {
		return errors.New("nil figure")
	}
	if total.Sign() < 0 || supply.Sign() < 0 || reserve.Sign() < 0 {
		return errors.New("negative figure")
	}
	s.totalValue.Set(total)
	s.shareSupply.Set(supply)
	s.reserve.Set(reserve)
	s.lastEpoch.Set(lastEpoch)
	return nil
}

// RestoreAccount credits one share account verbatim on a fresh pool.
func (s *Service) RestoreAccount(depositor rock.Address, shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return errors.New("restored shares must be positive")
	}
	return s.credit(depositor, shares)
}

func (s *Service) debit(addr rock.Address, shares *big.Int) error {
	holding, err := s.SharesOf(addr)
	if err != nil {
		return err
	}
	rest := new(big.Int).Sub(holding, shares)
	if rest.Sign() < 0 {
		return reverts.InsufficientShares("share account holds less than requested")
	}
	if rest.Sign() == 0 {
		if err := s.shares.Delete(addr); err != nil {
			return errors.Wrap(err, "failed to clear share account")
		}
		return nil
	}
	if err := s.shares.Set(addr, rest); err != nil {
		return errors.Wrap(err, "failed to debit share account")
	}
	return nil
}
