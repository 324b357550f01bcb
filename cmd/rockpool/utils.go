// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-tty"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rockpool-labs/rockpool/co"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/metrics"
	"github.com/rockpool-labs/rockpool/onchain"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
)

func initLogger(lvl int, jsonLogs bool) *slog.LevelVar {
	logLevel := log.FromLegacyLevel(lvl)
	var level slog.LevelVar
	level.Set(logLevel)

	output := io.Writer(os.Stdout)
	var handler slog.Handler
	if jsonLogs {
		handler = log.JSONHandlerWithLevel(output, &level)
	} else {
		useColor := (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())) && os.Getenv("TERM") != "dumb"
		handler = log.NewTerminalHandlerWithLevel(output, &level, useColor)
	}
	log.SetDefault(log.NewLogger(handler))

	return &level
}

func readIntFromUInt64Flag(val uint64) (int, error) {
	i := int(val)
	if i < 0 || uint64(i) != val {
		return 0, fmt.Errorf("invalid value %d", val)
	}
	return i, nil
}

// handleExitSignal returns a context cancelled on interrupt or termination.
func handleExitSignal() context.Context {
	exitSignalCh := make(chan os.Signal, 1)
	signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

// handleAPITimeout applies a request deadline to everything but the
// websocket subscription endpoints, which stay open for as long as the
// subscriber does.
func handleAPITimeout(handler http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/subscriptions") {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		handler.ServeHTTP(w, r)
	})
}

func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

func startMetricsServer(addr string) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen metrics API addr [%v]", addr)
	}

	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	handler := handlers.CompressHandler(router)

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/metrics", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

func parseAddressFlag(ctx *cli.Context, flag cli.StringFlag) (rock.Address, error) {
	value := ctx.String(flag.Name)
	if value == "" {
		return rock.Address{}, fmt.Errorf("the --%s flag is required", flag.Name)
	}
	addr, err := rock.ParseAddress(value)
	if err != nil {
		return rock.Address{}, errors.WithMessagef(err, "parse --%s flag", flag.Name)
	}
	return *addr, nil
}

func parseAmountFlag(ctx *cli.Context, flag cli.StringFlag) (*big.Int, error) {
	value := ctx.String(flag.Name)
	if value == "" {
		return nil, fmt.Errorf("the --%s flag is required", flag.Name)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("parse --%s flag: invalid integer %q", flag.Name, value)
	}
	return amount, nil
}

// guardStaleness feeds the pool the freshest externally observed epoch so
// mutations against settled-behind books get refused. No endpoint, no guard.
func guardStaleness(ctx *cli.Context, p *pool.Pool) error {
	endpoint := ctx.String(endpointFlag.Name)
	if endpoint == "" {
		return nil
	}

	view := onchain.NewHTTPView(endpoint)
	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	epoch, err := view.CurrentEpoch(reqCtx)
	if err != nil {
		return errors.WithMessage(err, "fetch current epoch")
	}
	p.NoteExternalEpoch(epoch)
	return nil
}

func printPoolSummary(p *pool.Pool) error {
	summary, err := p.Summary()
	if err != nil {
		return err
	}

	fmt.Printf(`Pool %v
    Name          [ %v ]
    Manager       [ %v ]
    Reserve       [ %v ]
    Fee account   [ %v ]
    Total value   [ %v ]
    Share supply  [ %v ]
    Reserve funds [ %v ]
    Rate          [ %v ]
    Last epoch    [ %v ]
    Validators    [ %v ]
`,
		summary.Addresses.Pool,
		summary.Name,
		summary.Addresses.Manager,
		summary.Addresses.Reserve,
		summary.Addresses.FeeAccount,
		summary.TotalValue,
		summary.ShareSupply,
		summary.Reserve,
		summary.Rate,
		summary.LastEpoch,
		summary.Validators)
	return nil
}

func readPasswordFromNewTTY(prompt string) (string, error) {
	t, err := tty.Open()
	if err != nil {
		return "", err
	}
	defer t.Close()

	fmt.Fprint(t.Output(), prompt)
	pass, err := t.ReadPasswordNoEcho()
	if err != nil {
		return "", err
	}
	return pass, err
}

// jsonDiff renders a unified diff of two values in their JSON form.
func jsonDiff(expected, actual interface{}) (string, error) {
	expectedJSON, err := json.MarshalIndent(expected, "", "  ")
	if err != nil {
		return "", err
	}
	actualJSON, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expectedJSON)),
		B:        difflib.SplitLines(string(actualJSON)),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
}
