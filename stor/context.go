// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stor

import (
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/rockpool-labs/rockpool/state"
)

// Context scopes typed storage accessors to one pool.
type Context struct {
	pool  rock.Address
	state *state.State
}

func NewContext(pool rock.Address, state *state.State) *Context {
	return &Context{
		pool:  pool,
		state: state,
	}
}

func (c *Context) Pool() rock.Address {
	return c.pool
}

func (c *Context) State() *state.State {
	return c.state
}
