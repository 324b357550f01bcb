// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package httpclient provides an HTTP client to interact with a RockPool
// coordinator. It offers methods covering pool books, deposits, the
// validator roster, stake moves, reconciliation and the settlement journal.
package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rockpool-labs/rockpool/api/deposits"
	"github.com/rockpool-labs/rockpool/api/pools"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/distributor"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/rock"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNot200Status = errors.New("not 200 status code")
)

// Client represents the HTTP client for interacting with a coordinator.
// It manages communication via HTTP requests.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client with the provided URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: url,
		c:   c,
	}
}

// GetPools retrieves the addresses of every pool the coordinator manages.
func (c *Client) GetPools() ([]rock.Address, error) {
	body, err := c.httpGET(c.url + "/pools")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve pools - %w", err)
	}

	var addrs []rock.Address
	if err = json.Unmarshal(body, &addrs); err != nil {
		return nil, fmt.Errorf("unable to unmarshal pools - %w", err)
	}

	return addrs, nil
}

// CreatePool initializes a new pool and returns its first summary.
func (c *Client) CreatePool(req *pools.CreatePool) (*pool.Summary, error) {
	body, err := c.httpPOST(c.url+"/pools", req)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool - %w", err)
	}

	var summary pool.Summary
	if err = json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("unable to unmarshal summary - %w", err)
	}

	return &summary, nil
}

// GetPool retrieves the financial snapshot of the given pool.
func (c *Client) GetPool(addr *rock.Address) (*pool.Summary, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String())
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve pool - %w", err)
	}

	var summary pool.Summary
	if err = json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("unable to unmarshal summary - %w", err)
	}

	return &summary, nil
}

// GetRate retrieves the exact share price of the given pool.
func (c *Client) GetRate(addr *rock.Address) (*pools.Rate, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String() + "/rate")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve rate - %w", err)
	}

	var rate pools.Rate
	if err = json.Unmarshal(body, &rate); err != nil {
		return nil, fmt.Errorf("unable to unmarshal rate - %w", err)
	}

	return &rate, nil
}

// GetAccounts retrieves every share account of the given pool.
func (c *Client) GetAccounts(addr *rock.Address) ([]*ledger.Account, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String() + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve accounts - %w", err)
	}

	var accounts []*ledger.Account
	if err = json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unable to unmarshal accounts - %w", err)
	}

	return accounts, nil
}

// GetAccount retrieves one depositor's share holding.
func (c *Client) GetAccount(addr, depositor *rock.Address) (*ledger.Account, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String() + "/accounts/" + depositor.String())
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve account - %w", err)
	}

	var account ledger.Account
	if err = json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("unable to unmarshal account - %w", err)
	}

	return &account, nil
}

// Deposit contributes value to the pool in exchange for shares.
func (c *Client) Deposit(addr *rock.Address, req *pools.DepositRequest) (*pool.DepositResult, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/deposits", req)
	if err != nil {
		return nil, fmt.Errorf("unable to deposit - %w", err)
	}

	var res pool.DepositResult
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unable to unmarshal deposit result - %w", err)
	}

	return &res, nil
}

// Withdraw burns shares for value.
func (c *Client) Withdraw(addr *rock.Address, req *pools.WithdrawRequest) (*pool.WithdrawResult, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/withdrawals", req)
	if err != nil {
		return nil, fmt.Errorf("unable to withdraw - %w", err)
	}

	var res pool.WithdrawResult
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unable to unmarshal withdraw result - %w", err)
	}

	return &res, nil
}

// GetValidators retrieves the validator roster of the given pool.
func (c *Client) GetValidators(addr *rock.Address) ([]*pools.Validator, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String() + "/validators")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve validators - %w", err)
	}

	var entries []*pools.Validator
	if err = json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("unable to unmarshal validators - %w", err)
	}

	return entries, nil
}

// GetValidator retrieves one roster entry.
func (c *Client) GetValidator(addr, validator *rock.Address) (*pools.Validator, error) {
	body, err := c.httpGET(c.url + "/pools/" + addr.String() + "/validators/" + validator.String())
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve validator - %w", err)
	}

	var entry pools.Validator
	if err = json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("unable to unmarshal validator - %w", err)
	}

	return &entry, nil
}

// AddValidator registers a validator with a delegation cap.
func (c *Client) AddValidator(addr *rock.Address, req *pools.AddValidator) (*pools.Validator, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/validators", req)
	if err != nil {
		return nil, fmt.Errorf("unable to add validator - %w", err)
	}

	var entry pools.Validator
	if err = json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("unable to unmarshal validator - %w", err)
	}

	return &entry, nil
}

// RemoveValidator drops an inactive, stakeless validator from the roster.
func (c *Client) RemoveValidator(addr, validator *rock.Address) error {
	if _, err := c.httpDELETE(c.url + "/pools/" + addr.String() + "/validators/" + validator.String()); err != nil {
		return fmt.Errorf("unable to remove validator - %w", err)
	}
	return nil
}

// DeactivateValidator starts winding a validator down.
func (c *Client) DeactivateValidator(addr, validator *rock.Address) (*pools.Validator, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/validators/"+validator.String()+"/deactivate", nil)
	if err != nil {
		return nil, fmt.Errorf("unable to deactivate validator - %w", err)
	}

	var entry pools.Validator
	if err = json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("unable to unmarshal validator - %w", err)
	}

	return &entry, nil
}

// SetValidatorCap replaces a validator's delegation cap.
func (c *Client) SetValidatorCap(addr, validator *rock.Address, req *pools.SetCap) (*pools.Validator, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/validators/"+validator.String()+"/cap", req)
	if err != nil {
		return nil, fmt.Errorf("unable to set validator cap - %w", err)
	}

	var entry pools.Validator
	if err = json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("unable to unmarshal validator - %w", err)
	}

	return &entry, nil
}

// MoveStake increases or decreases one validator's stake.
func (c *Client) MoveStake(addr, validator *rock.Address, req *pools.StakeMove) (*distributor.Move, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/validators/"+validator.String()+"/stake", req)
	if err != nil {
		return nil, fmt.Errorf("unable to move stake - %w", err)
	}

	var move distributor.Move
	if err = json.Unmarshal(body, &move); err != nil {
		return nil, fmt.Errorf("unable to unmarshal move - %w", err)
	}

	return &move, nil
}

// Allocate spreads reserve stake over the roster or drains it back.
func (c *Client) Allocate(addr *rock.Address, req *pools.Allocation) ([]distributor.Move, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/allocations", req)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate - %w", err)
	}

	var moves []distributor.Move
	if err = json.Unmarshal(body, &moves); err != nil {
		return nil, fmt.Errorf("unable to unmarshal moves - %w", err)
	}

	return moves, nil
}

// Reconcile settles the pool against an externally observed epoch.
func (c *Client) Reconcile(addr *rock.Address, req *pools.ReconcileRequest) (*pools.ReconcileResult, error) {
	body, err := c.httpPOST(c.url+"/pools/"+addr.String()+"/reconcile", req)
	if err != nil {
		return nil, fmt.Errorf("unable to reconcile - %w", err)
	}

	var res pools.ReconcileResult
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unable to unmarshal reconcile result - %w", err)
	}

	return &res, nil
}

// FilterDeposits queries the settlement journal.
func (c *Client) FilterDeposits(req *deposits.Filter) ([]*depositdb.Record, error) {
	body, err := c.httpPOST(c.url+"/deposits", req)
	if err != nil {
		return nil, fmt.Errorf("unable to filter deposits - %w", err)
	}

	var records []*depositdb.Record
	if err = json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("unable to unmarshal records - %w", err)
	}

	return records, nil
}

// RawHTTPPost sends a raw HTTP POST request to the specified path with the provided data.
func (c *Client) RawHTTPPost(path string, calldata any) ([]byte, int, error) {
	var data []byte
	var err error

	if _, ok := calldata.([]byte); ok {
		data = calldata.([]byte)
	} else {
		data, err = json.Marshal(calldata)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to marshal payload - %w", err)
		}
	}

	return c.rawHTTPRequest(http.MethodPost, c.url+path, data)
}

// RawHTTPGet sends a raw HTTP GET request to the specified path.
func (c *Client) RawHTTPGet(path string) ([]byte, int, error) {
	return c.rawHTTPRequest(http.MethodGet, c.url+path, nil)
}
