// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rockpool-labs/rockpool/cry"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/snapshot"
)

// frameProgress lazily builds a progress bar once the frame count is known.
// The bar and a finisher come back for the caller to close out.
func frameProgress() (snapshot.Progress, func()) {
	var bar *pb.ProgressBar
	progress := func(done, total uint64) {
		if bar == nil {
			bar = pb.New64(int64(total)).SetMaxWidth(90).Start()
		}
		bar.Set64(int64(done))
	}
	return progress, func() {
		if bar != nil {
			bar.Finish()
		}
	}
}

func exportAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	poolAddr, err := parseAddressFlag(ctx, poolFlag)
	if err != nil {
		return err
	}

	output := ctx.String(outputFlag.Name)
	if ctx.Bool(verifySnapshotFlag.Name) && output == "" {
		return fmt.Errorf("the --%s flag requires --%s", verifySnapshotFlag.Name, outputFlag.Name)
	}

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	p, err := store.Open(poolAddr)
	if err != nil {
		return err
	}

	masterKey := loadMasterKey(ctx)
	sign := func(digest rock.Bytes32) ([]byte, error) {
		return cry.Sign(digest, crypto.FromECDSA(masterKey))
	}

	var w io.Writer = os.Stdout
	var progress snapshot.Progress
	finish := func() {}
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return errors.WithMessage(err, "create snapshot file")
		}
		defer file.Close()
		w = file
		// the bar shares stdout with the snapshot when no file is given,
		// so it only runs for file output
		progress, finish = frameProgress()
	}

	manifest, err := p.Export(w, sign, progress)
	finish()
	if err != nil {
		return err
	}

	// the report goes to stderr when the snapshot itself owns stdout
	report := io.Writer(os.Stdout)
	if output == "" {
		report = os.Stderr
	}
	fmt.Fprintf(report, `Exported pool %v
    Digest [ %v ]
    Signer [ %v ]
`, poolAddr, manifest.Digest, manifest.Signer)

	if ctx.Bool(verifySnapshotFlag.Name) {
		if err := verifySnapshot(p, output); err != nil {
			return err
		}
		fmt.Println("Snapshot verified")
	}
	return nil
}

// verifySnapshot round-trips the written file into a throwaway store and
// compares the books against the source pool.
func verifySnapshot(p *pool.Pool, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.WithMessage(err, "open snapshot file")
	}
	defer file.Close()

	memDB, err := lvldb.NewMem()
	if err != nil {
		return err
	}
	defer memDB.Close()

	imported, err := pool.NewStore(memDB, 0).Import(file, nil)
	if err != nil {
		return errors.WithMessage(err, "verify import")
	}

	want, err := p.Summary()
	if err != nil {
		return err
	}
	got, err := imported.Summary()
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(want, got) {
		diff, err := jsonDiff(want, got)
		if err != nil {
			return err
		}
		fmt.Println("Diff pool books")
		fmt.Println(diff)
		return errors.New("snapshot books mismatch")
	}
	return nil
}

func importAction(ctx *cli.Context) error {
	if err := initCommandLogger(ctx); err != nil {
		return err
	}

	input := ctx.String(inputFlag.Name)
	if input == "" {
		return fmt.Errorf("the --%s flag is required", inputFlag.Name)
	}
	file, err := os.Open(input)
	if err != nil {
		return errors.WithMessage(err, "open snapshot file")
	}
	defer file.Close()

	mainDB, store := openMainDB(ctx, makeInstanceDir(ctx))
	defer mainDB.Close()

	progress, finish := frameProgress()
	p, err := store.Import(file, progress)
	finish()
	if err != nil {
		return err
	}

	fmt.Printf("Imported pool %v\n", p.Address())
	return printPoolSummary(p)
}
