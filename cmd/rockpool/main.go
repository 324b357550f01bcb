// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rockpool-labs/rockpool/admin"
	"github.com/rockpool-labs/rockpool/api"
	"github.com/rockpool-labs/rockpool/co"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/health"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/metrics"
	"github.com/rockpool-labs/rockpool/node"
	"github.com/rockpool-labs/rockpool/onchain"
	"github.com/rockpool-labs/rockpool/pool"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "RockPool",
		Usage:     "Stake pool coordinator for delegated-stake networks",
		Copyright: "2025 The RockPool developers",
		Flags: []cli.Flag{
			endpointFlag,
			configDirFlag,
			dataDirFlag,
			cacheFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			apiDepositsLimitFlag,
			enableAPILogsFlag,
			pollIntervalFlag,
			verbosityFlag,
			jsonLogsFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "pool coordinator with a simulated chain for test & dev",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					apiAddrFlag,
					apiCorsFlag,
					apiTimeoutFlag,
					apiDepositsLimitFlag,
					enableAPILogsFlag,
					pollIntervalFlag,
					onDemandFlag,
					epochIntervalFlag,
					rewardBpsFlag,
					persistFlag,
					verbosityFlag,
					jsonLogsFlag,
					pprofFlag,
					enableMetricsFlag,
					metricsAddrFlag,
					enableAdminFlag,
					adminAddrFlag,
				},
				Action: soloAction,
			},
			{
				Name:  "create-pool",
				Usage: "create a pool from a YAML config and print its derived addresses",
				Flags: []cli.Flag{
					configDirFlag,
					dataDirFlag,
					cacheFlag,
					poolConfigFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: createPoolAction,
			},
			{
				Name:  "deposit",
				Usage: "deposit stake into a pool and print the issued shares",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					depositorFlag,
					amountFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: depositAction,
			},
			{
				Name:  "withdraw",
				Usage: "burn shares and withdraw stake from a pool",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					depositorFlag,
					sharesFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: withdrawAction,
			},
			{
				Name:  "add-validator",
				Usage: "register a validator with the pool",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					capFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: addValidatorAction,
			},
			{
				Name:  "remove-validator",
				Usage: "remove an inactive, empty validator from the pool",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: removeValidatorAction,
			},
			{
				Name:  "deactivate-validator",
				Usage: "stop delegations to a validator and begin unwinding its stake",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: deactivateValidatorAction,
			},
			{
				Name:  "set-validator-cap",
				Usage: "change the delegation cap of a validator",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					capFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: setValidatorCapAction,
			},
			{
				Name:  "increase-validator-stake",
				Usage: "move stake from the reserve to a validator",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					amountFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: increaseValidatorStakeAction,
			},
			{
				Name:  "decrease-validator-stake",
				Usage: "move stake from a validator back to the reserve",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					validatorFlag,
					amountFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: decreaseValidatorStakeAction,
			},
			{
				Name:  "update",
				Usage: "settle pools against the epoch reported by the chain view",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					poolFlag,
					endpointFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: updateAction,
			},
			{
				Name:      "query-address",
				Usage:     "derive a pool related address without touching the books",
				ArgsUsage: "pool|manager|reserve|fee-account",
				Flags: []cli.Flag{
					configDirFlag,
					poolFlag,
					poolNameFlag,
					managerFlag,
				},
				Action: queryAddressAction,
			},
			{
				Name:  "export",
				Usage: "write a signed snapshot of a pool's books",
				Flags: []cli.Flag{
					configDirFlag,
					dataDirFlag,
					cacheFlag,
					poolFlag,
					outputFlag,
					verifySnapshotFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: exportAction,
			},
			{
				Name:  "import",
				Usage: "restore a pool from a signed snapshot",
				Flags: []cli.Flag{
					dataDirFlag,
					cacheFlag,
					inputFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: importAction,
			},
			{
				Name:  "master-key",
				Usage: "master key management",
				Flags: []cli.Flag{
					configDirFlag,
					importMasterKeyFlag,
					exportMasterKeyFlag,
				},
				Action: masterKeyAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	lvl, err := readIntFromUInt64Flag(ctx.Uint64(verbosityFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse verbosity flag")
	}
	logLevel := initLogger(lvl, ctx.Bool(jsonLogsFlag.Name))

	// enable metrics as soon as possible
	metricsURL := ""
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return fmt.Errorf("unable to start metrics server - %w", err)
		}
		metricsURL = url
		defer closeFunc()
	}

	endpoint := ctx.String(endpointFlag.Name)
	if endpoint == "" {
		cli.ShowAppHelp(ctx)
		fmt.Println("endpoint flag not specified")
		os.Exit(1)
	}

	instanceDir := makeInstanceDir(ctx)

	mainDB, store := openMainDB(ctx, instanceDir)
	defer func() { logger.Info("closing pool database..."); mainDB.Close() }()

	journal := openJournalDB(instanceDir)
	defer func() { logger.Info("closing deposit journal..."); journal.Close() }()

	master := loadMasterKey(ctx)
	healthStatus := health.New(0)

	logAPIRequests := atomic.Bool{}
	logAPIRequests.Store(ctx.Bool(enableAPILogsFlag.Name))

	apiHandler, apiCloser := api.New(store, journal, api.Options{
		AllowedOrigins:   ctx.String(apiCorsFlag.Name),
		PprofOn:          ctx.Bool(pprofFlag.Name),
		LogRequests:      &logAPIRequests,
		EnableMetrics:    ctx.Bool(enableMetricsFlag.Name),
		LogsLimit:        ctx.Uint64(apiDepositsLimitFlag.Name),
		MessageCacheSize: 256,
	})
	defer func() { logger.Info("closing API..."); apiCloser() }()

	var handler http.Handler = apiHandler
	if timeout := ctx.Uint64(apiTimeoutFlag.Name); timeout > 0 {
		handler = handleAPITimeout(handler, time.Duration(timeout)*time.Millisecond)
	}

	apiURL, srvCloser, err := startAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return fmt.Errorf("unable to start API server - %w", err)
	}
	defer func() { logger.Info("stopping API server..."); srvCloser() }()

	adminURL := ""
	if ctx.Bool(enableAdminFlag.Name) {
		url, closeFunc, err := admin.New(ctx.String(adminAddrFlag.Name), logLevel, &logAPIRequests, healthStatus).Start()
		if err != nil {
			return fmt.Errorf("unable to start admin server - %w", err)
		}
		adminURL = url
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
	}

	printStartupMessage(endpoint, instanceDir, apiURL, metricsURL, adminURL, masterAddress(master), store)

	return node.New(
		store,
		onchain.NewHTTPView(endpoint),
		journal,
		healthStatus,
		node.Options{
			PollInterval: time.Duration(ctx.Uint64(pollIntervalFlag.Name)) * time.Second,
		},
	).Run(handleExitSignal())
}

func soloAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	lvl, err := readIntFromUInt64Flag(ctx.Uint64(verbosityFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse verbosity flag")
	}
	logLevel := initLogger(lvl, ctx.Bool(jsonLogsFlag.Name))

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return fmt.Errorf("unable to start metrics server - %w", err)
		}
		logger.Info("metrics server started", "url", url)
		defer closeFunc()
	}

	var (
		mainDB  *lvldb.LevelDB
		store   *pool.Store
		journal *depositdb.DepositDB
		dataDir string
	)

	if ctx.Bool(persistFlag.Name) {
		dataDir = makeInstanceDir(ctx)
		mainDB, store = openMainDB(ctx, dataDir)
		journal = openJournalDB(dataDir)
	} else {
		dataDir = "Memory"
		mainDB, store = openMemMainDB()
		journal = openMemJournalDB()
	}

	defer func() { logger.Info("closing pool database..."); mainDB.Close() }()
	defer func() { logger.Info("closing deposit journal..."); journal.Close() }()

	simulator := onchain.NewSolo(store, onchain.SoloOptions{
		EpochInterval: ctx.Uint64(epochIntervalFlag.Name),
		OnDemand:      ctx.Bool(onDemandFlag.Name),
		RewardBps:     ctx.Uint64(rewardBpsFlag.Name),
	})
	healthStatus := health.NewSolo(0)

	logAPIRequests := atomic.Bool{}
	logAPIRequests.Store(ctx.Bool(enableAPILogsFlag.Name))

	apiHandler, apiCloser := api.New(store, journal, api.Options{
		AllowedOrigins:   ctx.String(apiCorsFlag.Name),
		PprofOn:          ctx.Bool(pprofFlag.Name),
		LogRequests:      &logAPIRequests,
		EnableMetrics:    ctx.Bool(enableMetricsFlag.Name),
		LogsLimit:        ctx.Uint64(apiDepositsLimitFlag.Name),
		MessageCacheSize: 256,
	})
	defer func() { logger.Info("closing API..."); apiCloser() }()

	var handler http.Handler = apiHandler
	if timeout := ctx.Uint64(apiTimeoutFlag.Name); timeout > 0 {
		handler = handleAPITimeout(handler, time.Duration(timeout)*time.Millisecond)
	}

	apiURL, srvCloser, err := startAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return fmt.Errorf("unable to start API server - %w", err)
	}
	defer func() { logger.Info("stopping API server..."); srvCloser() }()

	if ctx.Bool(enableAdminFlag.Name) {
		url, closeFunc, err := admin.New(ctx.String(adminAddrFlag.Name), logLevel, &logAPIRequests, healthStatus).Start()
		if err != nil {
			return fmt.Errorf("unable to start admin server - %w", err)
		}
		logger.Info("admin server started", "url", url)
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
	}

	printSoloStartupMessage(dataDir, apiURL, store)

	exitCtx := handleExitSignal()

	goes := &co.Goes{}
	defer goes.Wait()
	goes.Go(func() {
		if err := simulator.Run(exitCtx); err != nil {
			logger.Error("simulated chain stopped", "err", err)
		}
	})

	return node.New(
		store,
		simulator,
		journal,
		healthStatus,
		node.Options{
			PollInterval: time.Duration(ctx.Uint64(pollIntervalFlag.Name)) * time.Second,
		},
	).Run(exitCtx)
}
