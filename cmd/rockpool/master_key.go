// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	guuid "github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
)

func masterKeyAction(ctx *cli.Context) error {
	hasImportFlag := ctx.Bool(importMasterKeyFlag.Name)
	hasExportFlag := ctx.Bool(exportMasterKeyFlag.Name)

	if hasImportFlag && hasExportFlag {
		return fmt.Errorf("flag %s and %s are exclusive", importMasterKeyFlag.Name, exportMasterKeyFlag.Name)
	}

	if !hasImportFlag && !hasExportFlag {
		fmt.Println("Master:", masterAddress(loadMasterKey(ctx)))
		return nil
	}

	if hasImportFlag {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Println("Input JSON keystore (end with ^d):")
		}
		keyjson, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		if err := json.Unmarshal(keyjson, &map[string]interface{}{}); err != nil {
			return errors.WithMessage(err, "unmarshal")
		}
		password, err := readPasswordFromNewTTY("Enter passphrase: ")
		if err != nil {
			return err
		}

		key, err := keystore.DecryptKey(keyjson, password)
		if err != nil {
			return errors.WithMessage(err, "decrypt")
		}

		if err := crypto.SaveECDSA(masterKeyPath(ctx), key.PrivateKey); err != nil {
			return err
		}
		fmt.Println("Master key imported:", masterAddress(key.PrivateKey))
		return nil
	}

	// export
	masterKey := loadMasterKey(ctx)

	password, err := readPasswordFromNewTTY("Enter passphrase: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("non-empty passphrase required")
	}
	confirm, err := readPasswordFromNewTTY("Confirm passphrase: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passphrase confirmation mismatch")
	}

	id, err := guuid.FromBytes(uuid.NewRandom())
	if err != nil {
		return errors.WithMessage(err, "generate key id")
	}
	keyjson, err := keystore.EncryptKey(&keystore.Key{
		PrivateKey: masterKey,
		Address:    crypto.PubkeyToAddress(masterKey.PublicKey),
		Id:         id,
	}, password, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return err
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println("=== JSON keystore ===")
	}
	_, err = fmt.Println(string(keyjson))
	return err
}
