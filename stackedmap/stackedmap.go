// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap provides a map with save-restore levels, for building
// up changes that can be reverted to any checkpoint.
package stackedmap

// MapGetter loads the value backing a key when no level holds it.
type MapGetter func(key interface{}) (value interface{}, exist bool, err error)

// level holds one checkpoint's writes, the journal keeping them in order.
type level struct {
	kvs     map[interface{}]interface{}
	journal []journalEntry
}

type journalEntry struct {
	key, value interface{}
}

// StackedMap is a map with checkpoints. Writes land in the level opened by
// the latest Push, Pop drops that level uncovering the values beneath, and
// reads see the newest write across all levels before falling back to src.
// A base level is always open, so a fresh map accepts writes.
type StackedMap struct {
	src    MapGetter
	levels []*level
	// ascending indexes of the levels that wrote each key, at most one
	// per level
	writtenAt map[interface{}][]int
}

// New creates a StackedMap backed by src.
func New(src MapGetter) *StackedMap {
	sm := &StackedMap{
		src:       src,
		writtenAt: make(map[interface{}][]int),
	}
	sm.Push()
	return sm
}

// Depth returns the number of open levels, counting the base level.
func (sm *StackedMap) Depth() int {
	return len(sm.levels)
}

// Push opens a new level and returns the depth before it, the value
// PopTo takes to unwind the level again.
func (sm *StackedMap) Push() int {
	sm.levels = append(sm.levels, &level{kvs: make(map[interface{}]interface{})})
	return len(sm.levels) - 1
}

// Pop drops the top level, reverting every Put since the matching Push.
func (sm *StackedMap) Pop() {
	top := len(sm.levels) - 1
	for key := range sm.levels[top].kvs {
		written := sm.writtenAt[key]
		if written = written[:len(written)-1]; len(written) == 0 {
			delete(sm.writtenAt, key)
		} else {
			sm.writtenAt[key] = written
		}
	}
	sm.levels[top] = nil
	sm.levels = sm.levels[:top]
}

// PopTo drops levels until depth remain.
func (sm *StackedMap) PopTo(depth int) {
	for len(sm.levels) > depth {
		sm.Pop()
	}
}

// Get returns the newest value written for key, consulting src when no
// level holds it. The second return value reports whether the key exists.
func (sm *StackedMap) Get(key interface{}) (interface{}, bool, error) {
	if written, ok := sm.writtenAt[key]; ok {
		return sm.levels[written[len(written)-1]].kvs[key], true, nil
	}
	return sm.src(key)
}

// Put writes key at the top level.
func (sm *StackedMap) Put(key, value interface{}) {
	top := len(sm.levels) - 1
	lvl := sm.levels[top]

	if _, seen := lvl.kvs[key]; !seen {
		sm.writtenAt[key] = append(sm.writtenAt[key], top)
	}
	lvl.kvs[key] = value
	lvl.journal = append(lvl.journal, journalEntry{key, value})
}

// Journal replays every surviving Put in write order, oldest level first.
// It stops early when the callback returns false.
func (sm *StackedMap) Journal(cb func(key, value interface{}) bool) {
	for _, lvl := range sm.levels {
		for _, entry := range lvl.journal {
			if !cb(entry.key, entry.value) {
				return
			}
		}
	}
}
