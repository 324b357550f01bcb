// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// defines individual function adapters, to easily construct
// composite interfaces from anonymous structs.

type (
	PutFunc    func(key, val []byte) error
	DeleteFunc func(key []byte) error
	WriteFunc  func() error
)

func (f PutFunc) Put(key, val []byte) error  { return f(key, val) }
func (f DeleteFunc) Delete(key []byte) error { return f(key) }
func (f WriteFunc) Write() error             { return f() }
