// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rockpool-labs/rockpool/lvldb"
	"github.com/rockpool-labs/rockpool/rock"
	"github.com/stretchr/testify/assert"
)

func newTestState(t *testing.T) (*Stater, *State) {
	store, err := lvldb.NewMem()
	if err != nil {
		t.Fatal(err)
	}
	stater := NewStater(store, 1)
	return stater, stater.NewState()
}

func TestStateReadWrite(t *testing.T) {
	_, st := newTestState(t)

	pool := rock.BytesToAddress([]byte("pool"))
	slot := rock.BytesToBytes32([]byte("slot"))
	value := rock.BytesToBytes32([]byte("value"))

	got, err := st.GetStorage(pool, slot)
	assert.Nil(t, err)
	assert.Equal(t, rock.Bytes32{}, got, "storage should be initially empty")

	st.SetStorage(pool, slot, value)
	got, err = st.GetStorage(pool, slot)
	assert.Nil(t, err)
	assert.Equal(t, value, got)

	// clearing stores an empty raw value
	st.SetStorage(pool, slot, rock.Bytes32{})
	raw, err := st.GetRawStorage(pool, slot)
	assert.Nil(t, err)
	assert.Zero(t, len(raw))
}

func TestStateRevert(t *testing.T) {
	_, st := newTestState(t)

	pool := rock.BytesToAddress([]byte("pool"))
	slot := rock.BytesToBytes32([]byte("slot"))

	values := []rock.Bytes32{
		rock.BytesToBytes32([]byte("v1")),
		rock.BytesToBytes32([]byte("v2")),
		rock.BytesToBytes32([]byte("v3")),
	}

	var chk int
	for _, v := range values {
		chk = st.NewCheckpoint()
		st.SetStorage(pool, slot, v)
	}

	for i := range values {
		v, err := st.GetStorage(pool, slot)
		assert.Nil(t, err)
		assert.Equal(t, values[len(values)-i-1], v)
		st.RevertTo(chk)
		chk--
	}
	v, err := st.GetStorage(pool, slot)
	assert.Nil(t, err)
	assert.Equal(t, rock.Bytes32{}, v)
}

func TestStageCommit(t *testing.T) {
	stater, st := newTestState(t)

	pool := rock.BytesToAddress([]byte("pool"))
	kept := rock.BytesToBytes32([]byte("kept"))
	gone := rock.BytesToBytes32([]byte("gone"))

	st.SetStorage(pool, gone, rock.BytesToBytes32([]byte("x")))
	stage := st.Stage()
	assert.Nil(t, stage.Commit())

	st = stater.NewState()
	st.SetStorage(pool, kept, rock.BytesToBytes32([]byte("y")))
	st.SetStorage(pool, gone, rock.Bytes32{})
	stage = st.Stage()
	assert.Equal(t, 2, stage.Len())
	assert.Nil(t, stage.Commit())

	fresh := stater.NewState()
	v, err := fresh.GetStorage(pool, kept)
	assert.Nil(t, err)
	assert.Equal(t, rock.BytesToBytes32([]byte("y")), v)

	v, err = fresh.GetStorage(pool, gone)
	assert.Nil(t, err)
	assert.Equal(t, rock.Bytes32{}, v)
}

func TestEncodeDecodeStorage(t *testing.T) {
	stater, st := newTestState(t)

	type record struct {
		Label  string
		Amount uint64
	}

	pool := rock.BytesToAddress([]byte("pool"))
	slot := rock.BytesToBytes32([]byte("slot"))

	saved := record{"stake", 42}
	err := st.EncodeStorage(pool, slot, func() ([]byte, error) {
		return rlp.EncodeToBytes(&saved)
	})
	assert.Nil(t, err)

	assert.Nil(t, st.Stage().Commit())

	var loaded record
	err = stater.NewState().DecodeStorage(pool, slot, func(raw []byte) error {
		return rlp.DecodeBytes(raw, &loaded)
	})
	assert.Nil(t, err)
	assert.Equal(t, saved, loaded)
}

func TestSharedReadCache(t *testing.T) {
	store, err := lvldb.NewMem()
	if err != nil {
		t.Fatal(err)
	}
	stater := NewStater(store, 1)

	pool := rock.BytesToAddress([]byte("pool"))
	slot := rock.BytesToBytes32([]byte("slot"))
	value := rock.BytesToBytes32([]byte("value"))

	st := stater.NewState()
	st.SetStorage(pool, slot, value)
	assert.Nil(t, st.Stage().Commit())

	// commit populated the shared cache, so reads bypass the store
	assert.Nil(t, store.Close())

	st = stater.NewState()
	v, err := st.GetStorage(pool, slot)
	assert.Nil(t, err)
	assert.Equal(t, value, v)
}
