// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package deposits queries the append-only deposit and withdrawal journal.
package deposits

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/api/utils"
	"github.com/rockpool-labs/rockpool/depositdb"
	"github.com/rockpool-labs/rockpool/rock"
)

// Range bounds a journal query by epoch or timestamp. A nil bound leaves
// that side of the range open.
type Range struct {
	Unit depositdb.RangeType `json:"unit,omitempty"`
	From *uint64             `json:"from,omitempty"`
	To   *uint64             `json:"to,omitempty"`
}

// Filter is the request body of a journal query. Nil members match
// everything.
type Filter struct {
	Pool      *rock.Address       `json:"pool"`
	Depositor *rock.Address       `json:"depositor"`
	Kind      depositdb.Kind      `json:"kind,omitempty"` // empty matches both kinds
	Order     depositdb.OrderType `json:"order,omitempty"`
	Range     *Range              `json:"range,omitempty"`
	Options   *depositdb.Options  `json:"options,omitempty"`
}

func (r *Range) validate() error {
	if r == nil {
		return nil
	}
	if r.Unit != "" && r.Unit != depositdb.Epoch && r.Unit != depositdb.Time {
		return fmt.Errorf("range.unit must be either '%s' or '%s', got '%s'", depositdb.Epoch, depositdb.Time, r.Unit)
	}
	// bounds are stored as sqlite integers
	if r.From != nil && *r.From > math.MaxInt64 {
		return fmt.Errorf("range.from exceeds the maximum allowed value of %d", int64(math.MaxInt64))
	}
	if r.To != nil && *r.To > math.MaxInt64 {
		return fmt.Errorf("range.to exceeds the maximum allowed value of %d", int64(math.MaxInt64))
	}
	if r.From != nil && r.To != nil && *r.To < *r.From {
		return errors.New("range.to must be greater than or equal to range.from")
	}
	return nil
}

func (r *Range) convert() *depositdb.Range {
	if r == nil {
		return nil
	}
	out := &depositdb.Range{
		Unit: r.Unit,
		From: 0,
		To:   math.MaxInt64,
	}
	if r.From != nil {
		out.From = *r.From
	}
	if r.To != nil {
		out.To = *r.To
	}
	return out
}

type Deposits struct {
	db    *depositdb.DepositDB
	limit uint64
}

func New(db *depositdb.DepositDB, limit uint64) *Deposits {
	return &Deposits{
		db,
		limit,
	}
}

func (d *Deposits) handleFilterRecords(w http.ResponseWriter, req *http.Request) error {
	var filter Filter
	if err := utils.ParseJSON(req.Body, &filter); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Options != nil && filter.Options.Limit > d.limit {
		return utils.Forbidden(fmt.Errorf("options.limit exceeds the maximum allowed value of %d", d.limit))
	}
	if filter.Options != nil && filter.Options.Offset > math.MaxInt64 {
		return utils.BadRequest(fmt.Errorf("options.offset exceeds the maximum allowed value of %d", int64(math.MaxInt64)))
	}
	if err := filter.Range.validate(); err != nil {
		return utils.BadRequest(err)
	}

	converted := &depositdb.Filter{
		Pool:      filter.Pool,
		Depositor: filter.Depositor,
		Kind:      filter.Kind,
		Order:     filter.Order,
		Range:     filter.Range.convert(),
		Options:   filter.Options,
	}
	if converted.Options == nil {
		// one more than the limit, to detect an oversized result
		converted.Options = &depositdb.Options{
			Offset: 0,
			Limit:  d.limit + 1,
		}
	}

	records, err := d.db.Filter(converted)
	if err != nil {
		return err
	}
	if len(records) > int(d.limit) {
		return utils.Forbidden(fmt.Errorf("the number of filtered records exceeds the maximum allowed value of %d, please use pagination", d.limit))
	}
	return utils.WriteJSON(w, records)
}

func (d *Deposits) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /deposits").
		HandlerFunc(utils.WrapHandlerFunc(d.handleFilterRecords))
}
