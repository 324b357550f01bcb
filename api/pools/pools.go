// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pools exposes pool books and operations over REST. Refused
// operations respond 403 with the revert message, unknown pools 404.
package pools

import (
	"math/big"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/api/utils"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
)

type Pools struct {
	store *pool.Store
}

func New(store *pool.Store) *Pools {
	return &Pools{store}
}

// convertErr maps domain failures onto http statuses. Reverted operations
// are well-formed requests the books refused, so they read as forbidden.
func convertErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pool.ErrNotFound):
		return utils.NotFound(err)
	case reverts.IsRevertErr(err):
		return utils.Forbidden(err)
	default:
		return err
	}
}

func (ps *Pools) openPool(req *http.Request) (*pool.Pool, error) {
	addr, err := rock.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	p, err := ps.store.Open(*addr)
	if err != nil {
		return nil, convertErr(err)
	}
	return p, nil
}

func (ps *Pools) handleListPools(w http.ResponseWriter, _ *http.Request) error {
	addrs, err := ps.store.List()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, addrs)
}

func (ps *Pools) handleCreatePool(w http.ResponseWriter, req *http.Request) error {
	var body CreatePool
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	p, err := ps.store.Create(&ledger.Info{
		Name:          body.Name,
		Manager:       body.Manager,
		EpochFeeBps:   body.EpochFeeBps,
		DepositFeeBps: body.DepositFeeBps,
	})
	if err != nil {
		return convertErr(err)
	}
	summary, err := p.Summary()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summary)
}

func (ps *Pools) handleGetPool(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	summary, err := p.Summary()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summary)
}

func (ps *Pools) handleGetRate(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	value, supply, err := p.Rate()
	if err != nil {
		return err
	}
	rate, _ := new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(supply)).Float64()
	return utils.WriteJSON(w, &Rate{Value: value, Supply: supply, Rate: rate})
}

func (ps *Pools) handleListAccounts(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	accounts, err := p.Accounts()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, accounts)
}

func (ps *Pools) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	depositor, err := rock.ParseAddress(mux.Vars(req)["depositor"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "depositor"))
	}
	shares, err := p.SharesOf(*depositor)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &ledger.Account{Depositor: *depositor, Shares: shares})
}

func (ps *Pools) handleDeposit(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	var body DepositRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	res, err := p.Deposit(body.Depositor, body.Amount)
	if err != nil {
		return convertErr(err)
	}
	return utils.WriteJSON(w, res)
}

func (ps *Pools) handleWithdraw(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	var body WithdrawRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	res, err := p.Withdraw(body.Depositor, body.Shares)
	if err != nil {
		return convertErr(err)
	}
	return utils.WriteJSON(w, res)
}

func (ps *Pools) handleListValidators(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	entries, err := p.Validators()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertValidators(entries))
}

// validatorVar parses the {validator} path segment.
func validatorVar(req *http.Request) (rock.Address, error) {
	addr, err := rock.ParseAddress(mux.Vars(req)["validator"])
	if err != nil {
		return rock.Address{}, utils.BadRequest(errors.WithMessage(err, "validator"))
	}
	return *addr, nil
}

func (ps *Pools) handleGetValidator(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	validator, err := validatorVar(req)
	if err != nil {
		return err
	}
	entry, err := p.Validator(validator)
	if err != nil {
		if reverts.IsRevertErr(err) {
			return utils.NotFound(err)
		}
		return err
	}
	return utils.WriteJSON(w, convertValidator(entry))
}

func (ps *Pools) handleAddValidator(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	var body AddValidator
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.AddValidator(body.Validator, body.Cap); err != nil {
		return convertErr(err)
	}
	entry, err := p.Validator(body.Validator)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertValidator(entry))
}

func (ps *Pools) handleRemoveValidator(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	validator, err := validatorVar(req)
	if err != nil {
		return err
	}
	if err := p.RemoveValidator(validator); err != nil {
		return convertErr(err)
	}
	return utils.WriteJSON(w, utils.M{"removed": validator})
}

func (ps *Pools) handleDeactivateValidator(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	validator, err := validatorVar(req)
	if err != nil {
		return err
	}
	if err := p.DeactivateValidator(validator); err != nil {
		return convertErr(err)
	}
	entry, err := p.Validator(validator)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertValidator(entry))
}

func (ps *Pools) handleSetValidatorCap(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	validator, err := validatorVar(req)
	if err != nil {
		return err
	}
	var body SetCap
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := p.SetValidatorCap(validator, body.Cap); err != nil {
		return convertErr(err)
	}
	entry, err := p.Validator(validator)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertValidator(entry))
}

func (ps *Pools) handleStakeMove(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	validator, err := validatorVar(req)
	if err != nil {
		return err
	}
	var body StakeMove
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	switch body.Op {
	case OpIncrease:
		move, err := p.IncreaseValidatorStake(validator, body.Amount)
		if err != nil {
			return convertErr(err)
		}
		return utils.WriteJSON(w, move)
	case OpDecrease:
		move, err := p.DecreaseValidatorStake(validator, body.Amount)
		if err != nil {
			return convertErr(err)
		}
		return utils.WriteJSON(w, move)
	default:
		return utils.BadRequest(errors.Errorf("op: expected %q or %q", OpIncrease, OpDecrease))
	}
}

func (ps *Pools) handleAllocation(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	var body Allocation
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	switch body.Op {
	case OpAllocate:
		moves, err := p.Allocate(body.Amount)
		if err != nil {
			return convertErr(err)
		}
		return utils.WriteJSON(w, moves)
	case OpDeallocate:
		moves, err := p.Deallocate(body.Amount)
		if err != nil {
			return convertErr(err)
		}
		return utils.WriteJSON(w, moves)
	default:
		return utils.BadRequest(errors.Errorf("op: expected %q or %q", OpAllocate, OpDeallocate))
	}
}

func (ps *Pools) handleReconcile(w http.ResponseWriter, req *http.Request) error {
	p, err := ps.openPool(req)
	if err != nil {
		return err
	}
	var body ReconcileRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	applied, err := p.Reconcile(body.Epoch, body.TotalValue)
	if err != nil {
		return convertErr(err)
	}
	return utils.WriteJSON(w, &ReconcileResult{Applied: applied})
}

func (ps *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /pools").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleListPools))
	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /pools").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleCreatePool))
	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /pools/{address}").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleGetPool))
	sub.Path("/{address}/rate").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/rate").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleGetRate))
	sub.Path("/{address}/accounts").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/accounts").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleListAccounts))
	sub.Path("/{address}/accounts/{depositor}").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/accounts/{depositor}").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleGetAccount))
	sub.Path("/{address}/deposits").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/deposits").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleDeposit))
	sub.Path("/{address}/withdrawals").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/withdrawals").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleWithdraw))
	sub.Path("/{address}/validators").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/validators").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleListValidators))
	sub.Path("/{address}/validators").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/validators").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleAddValidator))
	sub.Path("/{address}/validators/{validator}").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/validators/{validator}").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleGetValidator))
	sub.Path("/{address}/validators/{validator}").
		Methods(http.MethodDelete).
		Name("DELETE /pools/{address}/validators/{validator}").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleRemoveValidator))
	sub.Path("/{address}/validators/{validator}/deactivate").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/validators/{validator}/deactivate").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleDeactivateValidator))
	sub.Path("/{address}/validators/{validator}/cap").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/validators/{validator}/cap").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleSetValidatorCap))
	sub.Path("/{address}/validators/{validator}/stake").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/validators/{validator}/stake").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleStakeMove))
	sub.Path("/{address}/allocations").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/allocations").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleAllocation))
	sub.Path("/{address}/reconcile").
		Methods(http.MethodPost).
		Name("POST /pools/{address}/reconcile").
		HandlerFunc(utils.WrapHandlerFunc(ps.handleReconcile))
}
