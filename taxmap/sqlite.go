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

package taxmap

import (
	"database/sql"
	"errors"
	"io"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3" // driver for mapping databases
	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
)

const (
	// DefaultBatchMem caps how much row data a build transaction holds
	// before it is committed.
	DefaultBatchMem = 256 << 20

	// rowOverhead approximates sqlite's per-row cost beyond the values
	// themselves, for batch accounting.
	rowOverhead = 32
)

const (
	ErrBuilderDuplicates = Error("database builds only support the keep-first duplicate policy")
	ErrBuilderClosed     = Error("database builder already closed")
)

// Builder streams an accession mapping into a sqlite database, so that
// release-sized mappings, such as prot.accession2taxid with its hundreds of
// millions of rows, can be queried later without holding them in memory.
type Builder struct {
	db       *sql.DB
	tx       *sql.Tx
	insert   *sql.Stmt
	pending  uint64
	batchMem uint64
	rows     int64
	dropped  int
}

// NewBuilder creates (or opens, to continue) the sqlite database at the
// given path. batchMem bounds the approximate bytes buffered per
// transaction; 0 means DefaultBatchMem.
func NewBuilder(path string, batchMem uint64) (*Builder, error) {
	if batchMem == 0 {
		batchMem = DefaultBatchMem
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	for _, table := range []string{
		`CREATE TABLE IF NOT EXISTS [taxa] (accession TEXT PRIMARY KEY, taxon TEXT) WITHOUT ROWID`,
	} {
		if _, err := db.Exec(table); err != nil {
			return nil, err
		}
	}

	return &Builder{db: db, batchMem: batchMem}, nil
}

// Add records an accession to taxon assignment, keeping the first
// assignment seen for an accession.
func (b *Builder) Add(accession string, taxon taxonomy.TaxID) error {
	if b.db == nil {
		return ErrBuilderClosed
	}

	if b.tx == nil {
		if err := b.begin(); err != nil {
			return err
		}
	}

	if _, err := b.insert.Exec(accession, string(taxon)); err != nil {
		return err
	}

	b.rows++
	b.pending += uint64(len(accession)+len(taxon)) + rowOverhead

	if b.pending >= b.batchMem {
		return b.flush()
	}

	return nil
}

func (b *Builder) begin() error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}

	insert, err := tx.Prepare(`INSERT OR IGNORE INTO [taxa] (accession, taxon) VALUES (?, ?)`)
	if err != nil {
		return err
	}

	b.tx, b.insert = tx, insert

	return nil
}

func (b *Builder) flush() error {
	if b.tx == nil {
		return nil
	}

	tx := b.tx
	b.tx, b.insert, b.pending = nil, nil, 0

	return tx.Commit()
}

// ImportNCBI streams an NCBI mapping file into the database; see NewNCBI
// for the format. Mapped ids the tree does not contain are dropped. Only
// the KeepFirst duplicate policy is supported when building a database.
func (b *Builder) ImportNCBI(r io.Reader, tree *taxonomy.Tree, cfg Config) error {
	return b.importRows(r, tree, nil, cfg)
}

// ImportGTDB streams a GTDB mapping file into the database, resolving
// genome accessions to species as it goes; genomes the index does not know,
// and species the tree does not contain, are dropped.
func (b *Builder) ImportGTDB(r io.Reader, tree *taxonomy.Tree,
	genomes *gtdb.Genomes, cfg Config) error {
	if genomes == nil {
		return ErrNeedGenomes
	}

	return b.importRows(r, tree, genomes, cfg)
}

func (b *Builder) importRows(r io.Reader, tree *taxonomy.Tree,
	genomes *gtdb.Genomes, cfg Config) error {
	if cfg.Duplicates != KeepFirst {
		return ErrBuilderDuplicates
	}

	if tree == nil {
		return ErrNeedTree
	}

	return scan(r, cfg, genomes == nil, func(accession string, taxon taxonomy.TaxID) error {
		if genomes != nil {
			taxon = genomes.Species(string(taxon))
		}

		if accession == "" || !tree.Contains(taxon) {
			b.dropped++

			return nil
		}

		return b.Add(accession, taxon)
	})
}

// Rows returns how many assignments have been added, counting an
// accession's dropped duplicates.
func (b *Builder) Rows() int64 {
	return b.rows
}

// Dropped returns how many rows were dropped for having no usable
// accession or a taxon the tree does not contain.
func (b *Builder) Dropped() int {
	return b.dropped
}

// Close commits any pending batch and closes the database.
func (b *Builder) Close() error {
	if b.db == nil {
		return ErrBuilderClosed
	}

	var errm *multierror.Error

	err := b.flush()
	errm = multierror.Append(errm, err)

	err = b.db.Close()
	errm = multierror.Append(errm, err)

	b.db = nil

	return errm.ErrorOrNil()
}

// DB resolves accessions to taxon ids from a database made by a Builder.
type DB struct {
	db *sql.DB

	taxidStmt *sql.Stmt
	countStmt *sql.Stmt
}

// OpenDB opens a mapping database for queries.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	mdb := &DB{db: db}

	for stmt, query := range map[**sql.Stmt]string{
		&mdb.taxidStmt: `SELECT [taxon] FROM [taxa] WHERE [accession] = ?;`,
		&mdb.countStmt: `SELECT COUNT(*) FROM [taxa];`,
	} {
		if *stmt, err = db.Prepare(query); err != nil {
			return nil, err
		}
	}

	return mdb, nil
}

// TaxID resolves an accession to its taxon id, or None when the accession
// is not in the mapping.
func (d *DB) TaxID(accession string) (taxonomy.TaxID, error) {
	var taxon string

	err := d.taxidStmt.QueryRow(accession).Scan(&taxon)
	if errors.Is(err, sql.ErrNoRows) {
		return taxonomy.None, nil
	} else if err != nil {
		return taxonomy.None, err
	}

	return taxonomy.TaxID(taxon), nil
}

// Len returns the number of mapped accessions.
func (d *DB) Len() (int64, error) {
	var n int64

	err := d.countStmt.QueryRow().Scan(&n)

	return n, err
}

// Close closes the database.
func (d *DB) Close() error {
	var errm *multierror.Error

	for _, stmt := range []*sql.Stmt{d.taxidStmt, d.countStmt} {
		errm = multierror.Append(errm, stmt.Close())
	}

	errm = multierror.Append(errm, d.db.Close())

	return errm.ErrorOrNil()
}
