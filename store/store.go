/*******************************************************************************
 * Copyright (c) 2025, 2026 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// package store persists a built taxonomy (and a GTDB genome index) in a
// single-file database, so release-sized taxonomies need not be re-parsed
// from their dump files every session.

package store

import (
	"bytes"

	"github.com/hashicorp/go-multierror"
	"github.com/ugorji/go/codec"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
	bolt "go.etcd.io/bbolt"
	"vimagination.zapto.org/byteio"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotAStore   = Error("file is not a metapep taxonomy store")
	ErrCorruptNode = Error("store holds a malformed node record")
)

const (
	nodesBucket   = "nodes"
	namesBucket   = "names"
	genomesBucket = "genomes"
	metaBucket    = "meta"

	metaKeySystem = "system"
	metaKeyRoot   = "root"

	storeFilePerms = 0o640
	writeBatchSize = 100_000
)

// Create writes the tree, and optionally a genome index, to a new database
// at the given path. The database is self-contained: Open needs nothing
// else to rebuild both.
func Create(path string, tree *taxonomy.Tree, genomes *gtdb.Genomes) error {
	db, err := bolt.Open(path, storeFilePerms, &bolt.Options{
		NoFreelistSync: true,
		NoGrowSync:     true,
		FreelistType:   bolt.FreelistMapType,
	})
	if err != nil {
		return err
	}

	err = create(db, tree, genomes)
	if closeErr := db.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr).ErrorOrNil()
	}

	return err
}

func create(db *bolt.DB, tree *taxonomy.Tree, genomes *gtdb.Genomes) error {
	if err := createBuckets(db, tree); err != nil {
		return err
	}

	if err := writeNodes(db, tree); err != nil {
		return err
	}

	if err := writeNames(db, tree); err != nil {
		return err
	}

	return writeGenomes(db, genomes)
}

func createBuckets(db *bolt.DB, tree *taxonomy.Tree) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{
			nodesBucket, namesBucket, genomesBucket, metaBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}

		meta := tx.Bucket([]byte(metaBucket))

		if err := meta.Put([]byte(metaKeySystem),
			[]byte{byte(tree.System())}); err != nil {
			return err
		}

		return meta.Put([]byte(metaKeyRoot), []byte(tree.Root()))
	})
}

// kv is one pending bucket put; writes go to the database in batches so a
// release-sized taxonomy does not accumulate one huge transaction.
type kv struct {
	key, value []byte
}

func writeBatched(db *bolt.DB, bucket string, each func(emit func(kv))) error {
	batch := make([]kv, 0, writeBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		err := db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucket))

			for _, pair := range batch {
				if err := b.Put(pair.key, pair.value); err != nil {
					return err
				}
			}

			return nil
		})

		batch = batch[:0]

		return err
	}

	var writeErr error

	each(func(pair kv) {
		if writeErr != nil {
			return
		}

		batch = append(batch, pair)

		if len(batch) == writeBatchSize {
			writeErr = flush()
		}
	})

	if writeErr != nil {
		return writeErr
	}

	return flush()
}

func writeNodes(db *bolt.DB, tree *taxonomy.Tree) error {
	return writeBatched(db, nodesBucket, func(emit func(kv)) {
		tree.EachNode(func(node *taxonomy.Node) {
			emit(kv{[]byte(node.ID), encodeNode(node)})
		})
	})
}

func writeNames(db *bolt.DB, tree *taxonomy.Tree) error {
	handle := new(codec.BincHandle)

	return writeBatched(db, namesBucket, func(emit func(kv)) {
		tree.EachName(func(name string, ids []taxonomy.TaxID) {
			var encoded []byte

			codec.NewEncoderBytes(&encoded, handle).MustEncode(ids)

			emit(kv{[]byte(name), encoded})
		})
	})
}

func writeGenomes(db *bolt.DB, genomes *gtdb.Genomes) error {
	if genomes == nil {
		return nil
	}

	return writeBatched(db, genomesBucket, func(emit func(kv)) {
		genomes.Each(func(genome string, species taxonomy.TaxID) {
			emit(kv{[]byte(genome), []byte(species)})
		})
	})
}

// encodeNode packs a node's name, rank and ancestor path; children are not
// stored, since Open rebuilds them by inverting parents.
func encodeNode(node *taxonomy.Node) []byte {
	var buf bytes.Buffer

	w := byteio.StickyLittleEndianWriter{Writer: &buf}

	w.WriteStringX(node.Name)
	w.WriteInt8(int8(node.Rank))
	w.WriteStringX(string(node.Parent))
	w.WriteUintX(uint64(len(node.Ancestors)))

	for _, ancestor := range node.Ancestors {
		w.WriteStringX(string(ancestor))
	}

	return buf.Bytes()
}

func decodeNode(id, data []byte) (*taxonomy.Node, error) {
	r := byteio.StickyLittleEndianReader{Reader: bytes.NewReader(data)}

	node := &taxonomy.Node{
		ID:     taxonomy.TaxID(id),
		Name:   r.ReadStringX(),
		Rank:   taxonomy.Rank(r.ReadInt8()),
		Parent: taxonomy.TaxID(r.ReadStringX()),
	}

	if n := r.ReadUintX(); n > 0 {
		node.Ancestors = make([]taxonomy.TaxID, n)

		for i := range node.Ancestors {
			node.Ancestors[i] = taxonomy.TaxID(r.ReadStringX())
		}
	}

	if r.Err != nil {
		return nil, ErrCorruptNode
	}

	return node, nil
}

// Store is an open taxonomy store.
type Store struct {
	db     *bolt.DB
	system taxonomy.System
	root   taxonomy.TaxID
}

// Open opens a store created by Create, read-only.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, storeFilePerms, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}

	if err := db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil || tx.Bucket([]byte(nodesBucket)) == nil {
			return ErrNotAStore
		}

		system := meta.Get([]byte(metaKeySystem))
		if len(system) != 1 {
			return ErrNotAStore
		}

		s.system = taxonomy.System(system[0])
		if s.system > taxonomy.GTDB {
			return taxonomy.ErrUnknownSystem
		}

		s.root = taxonomy.TaxID(meta.Get([]byte(metaKeyRoot)))

		return nil
	}); err != nil {
		closeErr := db.Close()

		return nil, multierror.Append(err, closeErr).ErrorOrNil()
	}

	return s, nil
}

// System returns the reference system of the stored taxonomy.
func (s *Store) System() taxonomy.System {
	return s.system
}

// Root returns the root taxon id of the stored taxonomy.
func (s *Store) Root() taxonomy.TaxID {
	return s.root
}

// NodeCount returns the number of stored taxa.
func (s *Store) NodeCount() int {
	var n int

	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		n = tx.Bucket([]byte(nodesBucket)).Stats().KeyN

		return nil
	})

	return n
}

// GenomeCount returns the number of stored genome assignments.
func (s *Store) GenomeCount() int {
	var n int

	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		n = tx.Bucket([]byte(genomesBucket)).Stats().KeyN

		return nil
	})

	return n
}

// Tree rebuilds the stored taxonomy, wiring child sets by inverting the
// stored parents in one pass.
func (s *Store) Tree() (*taxonomy.Tree, error) {
	tree := taxonomy.New(s.system)

	if err := s.db.View(func(tx *bolt.Tx) error {
		if err := s.loadNodes(tx, tree); err != nil {
			return err
		}

		return loadNames(tx, tree)
	}); err != nil {
		return nil, err
	}

	if err := tree.SetRoot(s.root); err != nil {
		return nil, err
	}

	if err := tree.Validate(); err != nil {
		return nil, err
	}

	return tree, nil
}

func (s *Store) loadNodes(tx *bolt.Tx, tree *taxonomy.Tree) error {
	children := make(map[taxonomy.TaxID][]taxonomy.TaxID)

	if err := tx.Bucket([]byte(nodesBucket)).ForEach(func(k, v []byte) error {
		node, err := decodeNode(k, v)
		if err != nil {
			return err
		}

		if node.Parent != taxonomy.None {
			children[node.Parent] = append(children[node.Parent], node.ID)
		}

		return tree.Add(node)
	}); err != nil {
		return err
	}

	for parent, ids := range children {
		node := tree.Node(parent)
		if node == nil {
			return ErrCorruptNode
		}

		node.Children = ids
	}

	return nil
}

func loadNames(tx *bolt.Tx, tree *taxonomy.Tree) error {
	handle := new(codec.BincHandle)

	return tx.Bucket([]byte(namesBucket)).ForEach(func(k, v []byte) error {
		var ids []taxonomy.TaxID

		if err := codec.NewDecoderBytes(v, handle).Decode(&ids); err != nil {
			return err
		}

		for _, id := range ids {
			tree.AddName(string(k), id)
		}

		return nil
	})
}

// Genomes rebuilds the stored genome index; it is empty for NCBI stores.
func (s *Store) Genomes() (*gtdb.Genomes, error) {
	species := make(map[string]taxonomy.TaxID)

	if err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(genomesBucket)).ForEach(func(k, v []byte) error {
			species[string(k)] = taxonomy.TaxID(v)

			return nil
		})
	}); err != nil {
		return nil, err
	}

	return gtdb.NewGenomes(species), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
