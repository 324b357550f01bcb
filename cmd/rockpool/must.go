// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"math"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/fdlimit"
	"github.com/ethereum/go-ethereum/crypto"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
)

func fatal(args ...interface{}) {
	var w io.Writer
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		} else {
			w = io.MultiWriter(os.Stdout, os.Stderr)
		}
	}
	fmt.Fprint(w, "Fatal: ")
	fmt.Fprintln(w, args...)
	os.Exit(1)
}

func makeConfigDir(ctx *cli.Context) string {
	configDir := ctx.String(configDirFlag.Name)
	if configDir == "" {
		fatal(fmt.Sprintf("unable to infer default config dir, use -%s to specify", configDirFlag.Name))
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fatal(fmt.Sprintf("create config dir [%v]: %v", configDir, err))
	}
	return configDir
}

func makeDataDir(ctx *cli.Context) string {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dataDir, err))
	}
	return dataDir
}

// makeInstanceDir keys the database layout by version so that future
// format migrations can live next to the old files.
func makeInstanceDir(ctx *cli.Context) string {
	dataDir := makeDataDir(ctx)

	instanceDir := filepath.Join(dataDir, "instance-v1")
	if err := os.MkdirAll(instanceDir, 0700); err != nil {
		fatal(fmt.Sprintf("create instance dir [%v]: %v", instanceDir, err))
	}
	return instanceDir
}

// openMainDB opens the pool database and sizes its caches against the
// machine. Half of the cache budget goes to leveldb, half to the state cache.
func openMainDB(ctx *cli.Context, dataDir string) (*lvldb.LevelDB, *pool.Store) {
	cacheMB := normalizeCacheSize(ctx.Int(cacheFlag.Name))
	logger.Debug("cache size(MB)", "size", cacheMB)

	// Ensure Go's GC ignores the database cache for trigger percentage
	gogc := math.Max(20, math.Min(100, 100/(float64(cacheMB)/1024)))

	logger.Debug("sanitize Go's GC trigger", "percent", int(gogc))
	debug.SetGCPercent(int(gogc))

	fdCache := suggestFDCache()
	logger.Debug("fd cache", "n", fdCache)

	dir := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{
		CacheSize:              cacheMB / 2,
		OpenFilesCacheCapacity: fdCache,
	})
	if err != nil {
		fatal(fmt.Sprintf("open pool database [%v]: %v", dir, err))
	}
	return db, pool.NewStore(db, cacheMB/2)
}

func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 128 {
		sizeMB = 128
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/2 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			logger.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

func suggestFDCache() int {
	limit, err := fdlimit.Current()
	if err != nil {
		fatal("failed to get fd limit:", err)
	}
	if limit <= 1024 {
		logger.Warn("low fd limit, increase it if possible", "limit", limit)
	}

	n := limit / 2
	if n > 5120 {
		return 5120
	}
	return n
}

func openMemMainDB() (*lvldb.LevelDB, *pool.Store) {
	db, err := lvldb.NewMem()
	if err != nil {
		fatal(fmt.Sprintf("open pool database: %v", err))
	}
	return db, pool.NewStore(db, 0)
}

func openJournalDB(dataDir string) *depositdb.DepositDB {
	dir := filepath.Join(dataDir, "deposits-v1.db")
	db, err := depositdb.New(dir)
	if err != nil {
		fatal(fmt.Sprintf("open deposit journal [%v]: %v", dir, err))
	}
	return db
}

func openMemJournalDB() *depositdb.DepositDB {
	db, err := depositdb.NewMem()
	if err != nil {
		fatal(fmt.Sprintf("open deposit journal: %v", err))
	}
	return db
}

func masterKeyPath(ctx *cli.Context) string {
	configDir := makeConfigDir(ctx)
	return filepath.Join(configDir, "master.key")
}

// loadOrGeneratePrivateKey reads the key file, creating and persisting a
// fresh key when none exists yet.
func loadOrGeneratePrivateKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

func loadMasterKey(ctx *cli.Context) *ecdsa.PrivateKey {
	key, err := loadOrGeneratePrivateKey(masterKeyPath(ctx))
	if err != nil {
		fatal("load or generate master key:", err)
	}
	return key
}

func masterAddress(key *ecdsa.PrivateKey) rock.Address {
	return rock.BytesToAddress(crypto.PubkeyToAddress(key.PublicKey).Bytes())
}

func defaultConfigDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".org.rockpool")
	}
	return ""
}

func defaultDataDir() string {
	// Try to place the data folder in the user's home dir
	if home := homeDir(); home != "" {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, "Library", "Application Support", "org.rockpool")
		case "windows":
			return filepath.Join(home, "AppData", "Roaming", "org.rockpool")
		default:
			return filepath.Join(home, ".org.rockpool")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func printStartupMessage(
	endpoint string,
	instanceDir string,
	apiURL string,
	metricsURL string,
	adminURL string,
	master rock.Address,
	store *pool.Store,
) {
	pools, err := store.List()
	if err != nil {
		fatal("list pools:", err)
	}

	fmt.Printf(`Starting %v
    Endpoint     [ %v ]
    Pools        [ %v ]
    Master       [ %v ]
    Instance dir [ %v ]
    API portal   [ %v ]
`,
		common.MakeName("RockPool", fullVersion()),
		endpoint,
		len(pools),
		master,
		instanceDir,
		apiURL)
	if metricsURL != "" {
		fmt.Printf("    Metrics      [ %v ]\n", metricsURL)
	}
	if adminURL != "" {
		fmt.Printf("    Admin        [ %v ]\n", adminURL)
	}
}

func printSoloStartupMessage(
	dataDir string,
	apiURL string,
	store *pool.Store,
) {
	tableHead := `
┌────────────────────────────────────────────┬──────────────────────────────────┐
│                    Pool                    │               Name               │`
	tableContent := `
├────────────────────────────────────────────┼──────────────────────────────────┤
│ %v │ %v │`
	tableEnd := `
└────────────────────────────────────────────┴──────────────────────────────────┘`

	info := fmt.Sprintf(`Starting %v
    Data dir    [ %v ]
    API portal  [ %v ]`,
		common.MakeName("RockPool solo", fullVersion()),
		dataDir,
		apiURL)

	pools, err := store.All()
	if err != nil {
		fatal("list pools:", err)
	}
	if len(pools) > 0 {
		info += tableHead
		for _, p := range pools {
			inf, err := p.Info()
			if err != nil {
				fatal("read pool info:", err)
			}
			info += fmt.Sprintf(tableContent, p.Address(), fmt.Sprintf("%-32v", inf.Name))
		}
		info += tableEnd
	}
	info += "\r\n"

	fmt.Print(info)
}
