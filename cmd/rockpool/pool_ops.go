// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/rockpool-labs/rockpool/onchain"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/pool/ledger"
	"github.com/rockpool-labs/rockpool/rock"
)

// poolConfig is the YAML shape consumed by create-pool.
type poolConfig struct {
	Name          string `yaml:"name"`
	Manager       string `yaml:"manager"`
	EpochFeeBps   uint64 `yaml:"epochFeeBps"`
	DepositFeeBps uint64 `yaml:"depositFeeBps"`
}

func initCommandLogger(ctx *cli.Context) error {
	lvl, err := readIntFromUInt64Flag(ctx.Uint64(verbosityFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse verbosity flag")
	}
	initLogger(lvl, ctx.Bool(jsonLogsFlag.Name))
	return nil
}

// openPoolForOp opens the pool named by the --pool flag and arms the
// staleness guard when an endpoint is configured.
func openPoolForOp(ctx *cli.Context, store *pool.Store) (*pool.Pool, error) {
	poolAddr, err := parseAddressFlag(ctx, poolFlag)
	if err != nil {
		return nil, err
	}
	p, err := store.Open(poolAddr)
	if err != nil {
		return nil, err
	}
	if err := guardStaleness(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func readPoolConfig(path string) (*poolConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open pool config")
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var cfg poolConfig
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.WithMessage(err, "decode pool config")
	}
	if cfg.Name == "" {
		return nil, errors.New("pool config: name must not be empty")
	}
	return &cfg, nil
}

func createPoolAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	path := ctx.String(poolConfigFlag.Name)
	if path == "" {
		return fmt.Errorf("the --%s flag is required", poolConfigFlag.Name)
	}
	cfg, err := readPoolConfig(path)
	if err != nil {
		return err
	}

	var manager rock.Address
	if cfg.Manager == "" {
		manager = masterAddress(loadMasterKey(ctx))
	} else {
		addr, err := rock.ParseAddress(cfg.Manager)
		if err != nil {
			return errors.WithMessage(err, "pool config: parse manager")
		}
		manager = *addr
	}

	// new books start at the epoch the chain is in, when one is reachable
	createdEpoch := uint64(0)
	if endpoint := ctx.String(endpointFlag.Name); endpoint != "" {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		epoch, err := onchain.NewHTTPView(endpoint).CurrentEpoch(reqCtx)
		if err != nil {
			return errors.WithMessage(err, "fetch current epoch")
		}
		createdEpoch = epoch
	}

	instanceDir := makeInstanceDir(ctx)
	mainDB, store := openMainDB(ctx, instanceDir)
	defer mainDB.Close()

	p, err := store.Create(&ledger.Info{
		Name:          cfg.Name,
		Manager:       manager,
		EpochFeeBps:   cfg.EpochFeeBps,
		DepositFeeBps: cfg.DepositFeeBps,
		CreatedEpoch:  createdEpoch,
	})
	if err != nil {
		return err
	}
	return printPoolSummary(p)
}

func depositAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	depositor, err := parseAddressFlag(ctx, depositorFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmountFlag(ctx, amountFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	result, err := p.Deposit(depositor, amount)
	if err != nil {
		return err
	}

	fmt.Printf("Issued %v shares to %v\n", result.Shares, depositor)
	for _, move := range result.Moves {
		fmt.Printf("Delegating %v to %v\n", move.Amount, move.Validator)
	}
	return printPoolSummary(p)
}

func withdrawAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	depositor, err := parseAddressFlag(ctx, depositorFlag)
	if err != nil {
		return err
	}
	shares, err := parseAmountFlag(ctx, sharesFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	result, err := p.Withdraw(depositor, shares)
	if err != nil {
		return err
	}

	fmt.Printf("Withdrew %v for %v shares burned\n", result.Amount, shares)
	for _, move := range result.Moves {
		fmt.Printf("Undelegating %v from %v\n", move.Amount, move.Validator)
	}
	return printPoolSummary(p)
}

func addValidatorAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}
	cap, err := parseAmountFlag(ctx, capFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	if err := p.AddValidator(validator, cap); err != nil {
		return err
	}

	fmt.Printf("Added validator %v with cap %v\n", validator, cap)
	return printPoolSummary(p)
}

func removeValidatorAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	if err := p.RemoveValidator(validator); err != nil {
		return err
	}

	fmt.Printf("Removed validator %v\n", validator)
	return printPoolSummary(p)
}

func deactivateValidatorAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	if err := p.DeactivateValidator(validator); err != nil {
		return err
	}

	fmt.Printf("Deactivated validator %v\n", validator)
	return printPoolSummary(p)
}

func setValidatorCapAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}
	cap, err := parseAmountFlag(ctx, capFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	if err := p.SetValidatorCap(validator, cap); err != nil {
		return err
	}

	fmt.Printf("Set cap of validator %v to %v\n", validator, cap)
	return printPoolSummary(p)
}

func increaseValidatorStakeAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmountFlag(ctx, amountFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	move, err := p.IncreaseValidatorStake(validator, amount)
	if err != nil {
		return err
	}

	fmt.Printf("Delegating %v to %v\n", move.Amount, move.Validator)
	return printPoolSummary(p)
}

func decreaseValidatorStakeAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	validator, err := parseAddressFlag(ctx, validatorFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmountFlag(ctx, amountFlag)
	if err != nil {
		return err
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := openPoolForOp(ctx, store)
	if err != nil {
		return err
	}
	move, err := p.DecreaseValidatorStake(validator, amount)
	if err != nil {
		return err
	}

	fmt.Printf("Undelegating %v from %v\n", move.Amount, move.Validator)
	return printPoolSummary(p)
}

func updateAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	endpoint := ctx.String(endpointFlag.Name)
	if endpoint == "" {
		return fmt.Errorf("the --%s flag is required", endpointFlag.Name)
	}
	view := onchain.NewHTTPView(endpoint)

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	var addrs []rock.Address
	if value := ctx.String(poolFlag.Name); value != "" {
		addr, err := rock.ParseAddress(value)
		if err != nil {
			return errors.WithMessagef(err, "parse --%s flag", poolFlag.Name)
		}
		addrs = append(addrs, *addr)
	} else {
		all, err := store.List()
		if err != nil {
			return err
		}
		addrs = all
	}

	for _, addr := range addrs {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ob, err := onchain.Observe(reqCtx, view, addr)
		cancel()
		if err != nil {
			return errors.WithMessagef(err, "observe pool %v", addr)
		}

		p, err := store.Open(addr)
		if err != nil {
			return err
		}
		applied, err := p.Reconcile(ob.Epoch, ob.Value)
		if err != nil {
			return errors.WithMessagef(err, "settle pool %v", addr)
		}
		if applied {
			fmt.Printf("%v: settled epoch %v\n", addr, ob.Epoch)
		} else {
			fmt.Printf("%v: already settled for epoch %v\n", addr, ob.Epoch)
		}
	}
	return nil
}

func queryAddressAction(ctx *cli.Context) error {
	id := ctx.Args().First()
	switch id {
	case "pool":
		manager, err := parseAddressFlag(ctx, managerFlag)
		if err != nil {
			return err
		}
		name := ctx.String(poolNameFlag.Name)
		if name == "" {
			return fmt.Errorf("the --%s flag is required", poolNameFlag.Name)
		}
		fmt.Println(rock.CreatePoolAddress(manager, name))
	case "manager":
		fmt.Println(masterAddress(loadMasterKey(ctx)))
	case "reserve":
		poolAddr, err := parseAddressFlag(ctx, poolFlag)
		if err != nil {
			return err
		}
		fmt.Println(rock.ReserveAddress(poolAddr))
	case "fee-account":
		poolAddr, err := parseAddressFlag(ctx, poolFlag)
		if err != nil {
			return err
		}
		fmt.Println(rock.FeeAccountAddress(poolAddr))
	default:
		return fmt.Errorf("unknown address id %q, want pool|manager|reserve|fee-account", id)
	}
	return nil
}
