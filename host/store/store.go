// Copyright 2024 The Vanadium Authors
// This file is part of Vanadium.
//
// Vanadium is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vanadium is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vanadium. If not, see <http://www.gnu.org/licenses/>.

// Package store implements the host's durable backing for a V-App run: a
// fastcache hot tier in front of a goleveldb durable store, holding the
// serialized leaf bytes for every outstanding section, plus the in-memory
// Merkle accumulators built over them. Durability survives a host process
// restart mid-run; it is not required by the protocol itself (the page
// cache and its accumulators exist only for the duration of a run, per the
// data model's lifecycle rules) but makes the host client tolerant of a
// crash without losing a V-App's accumulated Data/Stack commits.
package store

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/vanadium-vm/vanadium/wire"
)

// Store is the shared durable substrate for every section of every running
// V-App: one leveldb handle plus one fastcache instance, both keyed by a
// composite (vapp hash, section, page index) key.
type Store struct {
	db    *leveldb.DB
	cache *fastcache.Cache
}

// Open opens (creating if necessary) a disk-backed Store at dir, fronted by
// an in-memory hot cache of cacheBytes.
func Open(dir string, cacheBytes int) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: fastcache.New(cacheBytes)}, nil
}

// OpenMem opens an in-memory Store, used by tests and by short-lived
// simulator runs that don't need a durable directory on disk.
func OpenMem(cacheBytes int) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: fastcache.New(cacheBytes)}, nil
}

// Close releases the underlying leveldb handle. The fastcache tier needs no
// explicit close.
func (s *Store) Close() error {
	return s.db.Close()
}

// leafKey builds the composite key for one section's page leaf.
func leafKey(vappHash [32]byte, section wire.SectionKind, index uint32) []byte {
	key := make([]byte, 32+1+4)
	copy(key, vappHash[:])
	key[32] = byte(section)
	binary.BigEndian.PutUint32(key[33:], index)
	return key
}

// putLeaf writes a leaf through the cache into the durable store.
func (s *Store) putLeaf(vappHash [32]byte, section wire.SectionKind, index uint32, leaf []byte) error {
	key := leafKey(vappHash, section, index)
	s.cache.Set(key, leaf)
	return s.db.Put(key, leaf, nil)
}

// getLeaf reads a leaf, trying the hot cache before falling back to
// leveldb. Returns ok=false if the key has never been written.
func (s *Store) getLeaf(vappHash [32]byte, section wire.SectionKind, index uint32) (leaf []byte, ok bool, err error) {
	key := leafKey(vappHash, section, index)
	if buf, found := s.cache.HasGet(nil, key); found {
		return buf, true, nil
	}
	val, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(key, val)
	return val, true, nil
}

// PutHMAC persists one preload batch's encrypted per-page HMAC attestation
//, keyed the same way as a leaf but under a distinct
// namespace byte so it never collides with page content.
func (s *Store) PutHMAC(vappHash [32]byte, index uint32, hmac [32]byte) error {
	key := hmacKey(vappHash, index)
	return s.db.Put(key, hmac[:], nil)
}

func hmacKey(vappHash [32]byte, index uint32) []byte {
	key := make([]byte, 32+1+4)
	copy(key, vappHash[:])
	key[32] = 0xff // outside the 0-2 SectionKind range, disjoint namespace
	binary.BigEndian.PutUint32(key[33:], index)
	return key
}

// PutEphemeralSK persists the ephemeral_sk the device discloses once preload
// finishes (§4.6 step 6), so the HMACs already written by PutHMAC can be
// unmasked later: encrypted_hmac_i XOR SHA256("VND_HMAC_MASK" || ephemeral_sk
// || be32(i)) recovers hmac_i.
func (s *Store) PutEphemeralSK(vappHash [32]byte, sk [32]byte) error {
	return s.db.Put(ephemeralSKKey(vappHash), sk[:], nil)
}

// EphemeralSK returns the ephemeral_sk stored for vappHash, if preload has
// completed for it.
func (s *Store) EphemeralSK(vappHash [32]byte) (sk [32]byte, ok bool, err error) {
	val, err := s.db.Get(ephemeralSKKey(vappHash), nil)
	if err == leveldb.ErrNotFound {
		return sk, false, nil
	}
	if err != nil {
		return sk, false, err
	}
	copy(sk[:], val)
	return sk, true, nil
}

func ephemeralSKKey(vappHash [32]byte) []byte {
	key := make([]byte, 32+1)
	copy(key, vappHash[:])
	key[32] = 0xfe // disjoint from both the 0-2 SectionKind namespace and 0xff HMAC namespace
	return key
}
