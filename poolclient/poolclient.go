// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package poolclient is the typed Go client for a RockPool coordinator. It
// wraps the REST surface and, when constructed with NewWithWS, the
// websocket event stream.
package poolclient

import (
	"fmt"
	"net/url"

	"github.com/rockpool-labs/rockpool/api/deposits"
	"github.com/rockpool-labs/rockpool/api/pools"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/distributor"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/poolclient/common"
	"github.com/rockpool-labs/rockpool/poolclient/httpclient"
	"github.com/rockpool-labs/rockpool/poolclient/wsclient"
	"github.com/rockpool-labs/rockpool/rock"
)

type Client struct {
	httpConn *httpclient.Client
	wsConn   *wsclient.Client
}

func New(url string) *Client {
	return &Client{
		httpConn: httpclient.New(url),
	}
}

func NewWithWS(url string) (*Client, error) {
	wsClient, err := wsclient.NewClient(url)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpConn: httpclient.New(url),
		wsConn:   wsClient,
	}, nil
}

func (c *Client) RawHTTPClient() *httpclient.Client {
	return c.httpConn
}

func (c *Client) RawWSClient() *wsclient.Client {
	return c.wsConn
}

func (c *Client) Pools() ([]rock.Address, error) {
	return c.httpConn.GetPools()
}

func (c *Client) CreatePool(req *pools.CreatePool) (*pool.Summary, error) {
	return c.httpConn.CreatePool(req)
}

func (c *Client) Pool(addr *rock.Address) (*pool.Summary, error) {
	return c.httpConn.GetPool(addr)
}

func (c *Client) Rate(addr *rock.Address) (*pools.Rate, error) {
	return c.httpConn.GetRate(addr)
}

func (c *Client) Accounts(addr *rock.Address) ([]*ledger.Account, error) {
	return c.httpConn.GetAccounts(addr)
}

func (c *Client) Account(addr, depositor *rock.Address) (*ledger.Account, error) {
	return c.httpConn.GetAccount(addr, depositor)
}

func (c *Client) Deposit(addr *rock.Address, req *pools.DepositRequest) (*pool.DepositResult, error) {
	return c.httpConn.Deposit(addr, req)
}

func (c *Client) Withdraw(addr *rock.Address, req *pools.WithdrawRequest) (*pool.WithdrawResult, error) {
	return c.httpConn.Withdraw(addr, req)
}

func (c *Client) Validators(addr *rock.Address) ([]*pools.Validator, error) {
	return c.httpConn.GetValidators(addr)
}

func (c *Client) Validator(addr, validator *rock.Address) (*pools.Validator, error) {
	return c.httpConn.GetValidator(addr, validator)
}

func (c *Client) AddValidator(addr *rock.Address, req *pools.AddValidator) (*pools.Validator, error) {
	return c.httpConn.AddValidator(addr, req)
}

func (c *Client) RemoveValidator(addr, validator *rock.Address) error {
	return c.httpConn.RemoveValidator(addr, validator)
}

func (c *Client) DeactivateValidator(addr, validator *rock.Address) (*pools.Validator, error) {
	return c.httpConn.DeactivateValidator(addr, validator)
}

func (c *Client) SetValidatorCap(addr, validator *rock.Address, req *pools.SetCap) (*pools.Validator, error) {
	return c.httpConn.SetValidatorCap(addr, validator, req)
}

func (c *Client) MoveStake(addr, validator *rock.Address, req *pools.StakeMove) (*distributor.Move, error) {
	return c.httpConn.MoveStake(addr, validator, req)
}

func (c *Client) Allocate(addr *rock.Address, req *pools.Allocation) ([]distributor.Move, error) {
	return c.httpConn.Allocate(addr, req)
}

func (c *Client) Reconcile(addr *rock.Address, req *pools.ReconcileRequest) (*pools.ReconcileResult, error) {
	return c.httpConn.Reconcile(addr, req)
}

func (c *Client) FilterDeposits(req *deposits.Filter) ([]*depositdb.Record, error) {
	return c.httpConn.FilterDeposits(req)
}

// EventsQuery builds the subscription query string. A nil pool or empty op
// leaves that filter open.
func EventsQuery(poolAddr *rock.Address, op string) string {
	q := url.Values{}
	if poolAddr != nil {
		q.Set("pool", poolAddr.String())
	}
	if op != "" {
		q.Set("op", op)
	}
	return q.Encode()
}

func (c *Client) SubscribeEvents(query string) (<-chan common.EventWrapper[*pool.Event], error) {
	if c.wsConn == nil {
		return nil, fmt.Errorf("not a websocket typed client")
	}
	return c.wsConn.SubscribeEvents(query)
}
