// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package depositdb keeps an append-only journal of committed deposits and
// withdrawals. Records are never updated or removed; the journal exists for
// queries, the books live in state.
package depositdb

import (
	"database/sql"
	"math/big"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rockpool-labs/rockpool/rock"
)

const entryTableSchema = `
create table if not exists entry (
	seq integer primary key autoincrement,
	pool blob(20),
	depositor blob(20),
	kind text,
	amount blob,
	shares blob,
	epoch integer,
	ts integer
);

CREATE INDEX if not exists poolIndex on entry(pool);
CREATE INDEX if not exists depositorIndex on entry(depositor);
CREATE INDEX if not exists epochIndex on entry(epoch);
`

// DepositDB manages the journal.
type DepositDB struct {
	path          string
	db            *sql.DB
	sqliteVersion string
}

// New opens a journal at path.
func New(path string) (*DepositDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(entryTableSchema); err != nil {
		return nil, err
	}
	s, _, _ := sqlite3.Version()
	return &DepositDB{
		path:          path,
		db:            db,
		sqliteVersion: s,
	}, nil
}

// NewMem creates an in-memory journal.
func NewMem() (*DepositDB, error) {
	return New(":memory:")
}

// Insert appends records in one transaction. The Sequence field of the
// inputs is ignored, the journal assigns it.
func (db *DepositDB) Insert(records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err = tx.Exec("INSERT INTO entry(pool, depositor, kind, amount, shares, epoch, ts) VALUES ( ?, ?, ?, ?, ?, ?, ? ); ",
			rec.Pool.Bytes(),
			rec.Depositor.Bytes(),
			string(rec.Kind),
			rec.Amount.Bytes(),
			rec.Shares.Bytes(),
			rec.Epoch,
			rec.Timestamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Filter returns the records matching filter. A nil filter returns the
// whole journal in insertion order.
func (db *DepositDB) Filter(filter *Filter) ([]*Record, error) {
	if filter == nil {
		return db.query("SELECT * FROM entry ORDER BY seq ASC")
	}
	var args []interface{}
	stmt := "SELECT * FROM entry WHERE 1"
	if filter.Range != nil {
		condition := "epoch"
		if filter.Range.Unit == Time {
			condition = "ts"
		}
		args = append(args, filter.Range.From)
		stmt += " AND " + condition + " >= ? "
		args = append(args, filter.Range.To)
		stmt += " AND " + condition + " <= ? "
	}
	if filter.Pool != nil {
		args = append(args, filter.Pool.Bytes())
		stmt += " AND pool = ? "
	}
	if filter.Depositor != nil {
		args = append(args, filter.Depositor.Bytes())
		stmt += " AND depositor = ? "
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		stmt += " AND kind = ? "
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC "
	} else {
		stmt += " ORDER BY seq ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(stmt, args...)
}

func (db *DepositDB) query(stmt string, args ...interface{}) ([]*Record, error) {
	rows, err := db.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			seq       uint64
			pool      []byte
			depositor []byte
			kind      string
			amount    []byte
			shares    []byte
			epoch     uint64
			ts        uint64
		)
		if err := rows.Scan(
			&seq,
			&pool,
			&depositor,
			&kind,
			&amount,
			&shares,
			&epoch,
			&ts,
		); err != nil {
			return nil, err
		}
		records = append(records, &Record{
			Sequence:  seq,
			Pool:      rock.BytesToAddress(pool),
			Depositor: rock.BytesToAddress(depositor),
			Kind:      Kind(kind),
			Amount:    new(big.Int).SetBytes(amount),
			Shares:    new(big.Int).SetBytes(shares),
			Epoch:     epoch,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Path returns the journal's file path.
func (db *DepositDB) Path() string {
	return db.path
}

// Close closes the journal.
func (db *DepositDB) Close() {
	db.db.Close()
}
