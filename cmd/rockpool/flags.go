// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rockpool-labs/rockpool/log"
)

var (
	endpointFlag = cli.StringFlag{
		Name:  "endpoint",
		Usage: "URL of the chain view oracle reporting epochs and delegation totals",
	}
	configDirFlag = cli.StringFlag{
		Name:   "config-dir",
		Value:  defaultConfigDir(),
		Hidden: true,
		Usage:  "directory for user global configurations",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for pool databases",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:7791",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiTimeoutFlag = cli.Uint64Flag{
		Name:  "api-timeout",
		Value: 10000,
		Usage: "API request timeout value in milliseconds",
	}
	apiDepositsLimitFlag = cli.Uint64Flag{
		Name:  "api-deposits-limit",
		Value: 1000,
		Usage: "limit the number of records returned by /deposits API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	pollIntervalFlag = cli.Uint64Flag{
		Name:  "poll-interval",
		Value: 10,
		Usage: "seconds between chain view polls",
	}
	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: log.LegacyLevelInfo,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
	cacheFlag = cli.Uint64Flag{
		Name:  "cache",
		Usage: "megabytes of ram allocated to pool state cache",
		Value: 4096,
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}
	importMasterKeyFlag = cli.BoolFlag{
		Name:  "import",
		Usage: "import master key from keystore",
	}
	exportMasterKeyFlag = cli.BoolFlag{
		Name:  "export",
		Usage: "export master key to keystore",
	}
	poolFlag = cli.StringFlag{
		Name:  "pool",
		Usage: "address of the pool to operate on",
	}
	poolNameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "pool name used for address derivation",
	}
	managerFlag = cli.StringFlag{
		Name:  "manager",
		Usage: "manager address used for address derivation",
	}
	depositorFlag = cli.StringFlag{
		Name:  "depositor",
		Usage: "address of the depositor account",
	}
	amountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "amount in stake units",
	}
	sharesFlag = cli.StringFlag{
		Name:  "shares",
		Usage: "amount in pool shares",
	}
	validatorFlag = cli.StringFlag{
		Name:  "validator",
		Usage: "vote address of the validator",
	}
	capFlag = cli.StringFlag{
		Name:  "cap",
		Usage: "delegation cap in stake units",
	}
	poolConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the pool config YAML file",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "path of the snapshot file to write (stdout if not set)",
	}
	inputFlag = cli.StringFlag{
		Name:  "input",
		Usage: "path of the snapshot file to read",
	}
	verifySnapshotFlag = cli.BoolFlag{
		Name:  "verify",
		Usage: "re-import the written snapshot into memory and compare books",
	}

	// solo mode only flags
	onDemandFlag = cli.BoolFlag{
		Name:  "on-demand",
		Usage: "advance epochs only through explicit triggers",
	}
	epochIntervalFlag = cli.Uint64Flag{
		Name:  "epoch-interval",
		Value: 10,
		Usage: "choose a custom epoch interval for solo mode (seconds)",
	}
	rewardBpsFlag = cli.Uint64Flag{
		Name:  "reward-bps",
		Value: 0,
		Usage: "per-epoch reward rate in basis points applied to delegated stake",
	}
	persistFlag = cli.BoolFlag{
		Name:  "persist",
		Usage: "pool data storage option, if set data will be saved to disk",
	}
)
