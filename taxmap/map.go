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

// package taxmap resolves protein accessions to taxon ids, from delimited
// mapping files held in memory or in a sqlite database built ahead of time.
package taxmap

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"

	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrSameColumns     = Error("accession and taxon columns must differ")
	ErrColumnRange     = Error("row has fewer columns than configured")
	ErrTaxonNotNumeric = Error("taxon column is not numeric")
	ErrDuplicate       = Error("duplicate accession in mapping")
	ErrNeedTree        = Error("a taxonomy tree is required")
	ErrNeedGenomes     = Error("gtdb mappings need a genome index")
)

// DuplicatePolicy says what happens when a mapping file assigns the same
// accession more than once.
type DuplicatePolicy uint8

const (
	// KeepFirst keeps the first assignment and drops the rest.
	KeepFirst DuplicatePolicy = iota

	// MergeLCA resolves all of an accession's taxa to their lowest common
	// ancestor; Config.Tree must be set.
	MergeLCA

	// Fail rejects the file on the first duplicate.
	Fail
)

// Config controls how a mapping file is read. The zero value reads
// comma-separated accession,taxon rows and keeps the first of any duplicate
// accessions.
type Config struct {
	// AccessionColumn and TaxonColumn are 0-based column indices.
	AccessionColumn int
	TaxonColumn     int

	// Delimiter is the column separator; 0 means comma.
	Delimiter rune

	// AccessionPattern, when set, reduces each accession to the part the
	// pattern matches. Accessions it does not match anywhere are treated
	// as missing and their rows dropped.
	AccessionPattern *regexp.Regexp

	// Duplicates picks the DuplicatePolicy.
	Duplicates DuplicatePolicy

	// GenomeTaxa, when set, converts each mapped value from a GTDB genome
	// accession to the NCBI taxon id a metadata release records for it, so
	// a GTDB-keyed mapping can be stored against an NCBI reference.
	// Genomes the metadata does not know resolve to None and their rows
	// are dropped.
	GenomeTaxa *gtdb.NCBIMap
}

func (c Config) validate() error {
	if c.AccessionColumn == c.TaxonColumn {
		return ErrSameColumns
	}

	return nil
}

// Map resolves accessions to taxon ids in memory.
type Map struct {
	taxa    map[string]taxonomy.TaxID
	genomes *gtdb.Genomes
	dropped int
}

// NewNCBI reads an accession to NCBI taxon id mapping from headerless
// delimited text, such as the prot.accession2taxid release files, validating
// every mapped id against the given tree. Every taxon id must be numeric
// unless Config.GenomeTaxa converts genome accessions first.
func NewNCBI(r io.Reader, tree *taxonomy.Tree, cfg Config) (*Map, error) {
	return newMap(r, tree, nil, cfg)
}

// NewGTDB reads an accession to GTDB genome mapping from headerless
// delimited text. Mapped values are genome accessions; lookups resolve them
// to species through the given genome index, and genomes whose species the
// tree does not hold are dropped during the read.
func NewGTDB(r io.Reader, tree *taxonomy.Tree, genomes *gtdb.Genomes, cfg Config) (*Map, error) {
	if genomes == nil {
		return nil, ErrNeedGenomes
	}

	return newMap(r, tree, genomes, cfg)
}

func newMap(r io.Reader, tree *taxonomy.Tree, genomes *gtdb.Genomes, cfg Config) (*Map, error) {
	if tree == nil {
		return nil, ErrNeedTree
	}

	m := &Map{
		taxa:    make(map[string]taxonomy.TaxID),
		genomes: genomes,
	}

	groups := make(map[string][]taxonomy.TaxID)

	err := scan(r, cfg, genomes == nil, func(accession string, taxon taxonomy.TaxID) error {
		return m.addRow(tree, accession, taxon, cfg, groups)
	})
	if err != nil {
		return nil, err
	}

	if err := m.mergeGroups(groups, tree); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Map) addRow(tree *taxonomy.Tree, accession string, taxon taxonomy.TaxID,
	cfg Config, groups map[string][]taxonomy.TaxID) error {
	if accession == "" || !tree.Contains(m.resolve(taxon)) {
		m.dropped++

		return nil
	}

	if cfg.Duplicates == MergeLCA {
		groups[accession] = append(groups[accession], taxon)

		return nil
	}

	if _, ok := m.taxa[accession]; ok {
		if cfg.Duplicates == Fail {
			return ErrDuplicate
		}

		return nil
	}

	m.taxa[accession] = taxon

	return nil
}

// mergeGroups resolves accessions the MergeLCA policy grouped during the
// scan. Groups of one keep their taxon as-is; larger groups resolve to the
// lowest common ancestor of their members.
func (m *Map) mergeGroups(groups map[string][]taxonomy.TaxID, tree *taxonomy.Tree) error {
	for accession, taxa := range groups {
		if len(taxa) == 1 {
			m.taxa[accession] = taxa[0]

			continue
		}

		lca, err := tree.LCA(m.speciesOf(taxa), taxonomy.UnknownIgnore)
		if err != nil {
			return err
		}

		m.taxa[accession] = lca
	}

	return nil
}

// resolve converts a stored value to a proper taxon id; for NCBI maps it
// already is one, while GTDB maps store genome accessions.
func (m *Map) resolve(taxon taxonomy.TaxID) taxonomy.TaxID {
	if m.genomes == nil {
		return taxon
	}

	return m.genomes.Species(string(taxon))
}

func (m *Map) speciesOf(taxa []taxonomy.TaxID) []taxonomy.TaxID {
	species := make([]taxonomy.TaxID, len(taxa))
	for i, taxon := range taxa {
		species[i] = m.resolve(taxon)
	}

	return species
}

// scan reads delimited rows, applies the accession pattern and the genome
// to taxon conversion, and hands each (accession, taxon) pair to fn. The
// numeric check is skipped when a conversion is configured, since the raw
// values are then genome accessions.
func scan(r io.Reader, cfg Config, numeric bool,
	fn func(string, taxonomy.TaxID) error) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if cfg.Delimiter != 0 {
		cr.Comma = cfg.Delimiter
	}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		if len(fields) <= cfg.AccessionColumn || len(fields) <= cfg.TaxonColumn {
			return ErrColumnRange
		}

		taxon := fields[cfg.TaxonColumn]
		if cfg.GenomeTaxa != nil {
			taxon = string(cfg.GenomeTaxa.TaxID(taxon))
		} else if numeric {
			if _, err := strconv.ParseInt(taxon, 10, 64); err != nil {
				return ErrTaxonNotNumeric
			}
		}

		accession := fields[cfg.AccessionColumn]
		if cfg.AccessionPattern != nil {
			accession = cfg.AccessionPattern.FindString(accession)
		}

		if err := fn(accession, taxonomy.TaxID(taxon)); err != nil {
			return err
		}
	}
}

// TaxID resolves an accession to its taxon id, or None when the accession
// is not in the mapping. Values held as genome accessions resolve through
// the genome index; values merged to a common ancestor are already taxon
// ids and pass through. The error is always nil and exists to satisfy
// Lookup.
func (m *Map) TaxID(accession string) (taxonomy.TaxID, error) {
	taxon, ok := m.taxa[accession]
	if !ok {
		return taxonomy.None, nil
	}

	if m.genomes != nil {
		if species := m.genomes.Species(string(taxon)); species != taxonomy.None {
			return species, nil
		}
	}

	return taxon, nil
}

// Genome returns the genome accession a GTDB mapping holds for the given
// accession, before species resolution, or "" when absent or when the map
// is not a GTDB one.
func (m *Map) Genome(accession string) string {
	if m.genomes == nil {
		return ""
	}

	return string(m.taxa[accession])
}

// Len returns the number of mapped accessions.
func (m *Map) Len() int {
	return len(m.taxa)
}

// Dropped returns how many rows were dropped, whether because the accession
// pattern did not match their accession or because their taxon is not in
// the tree.
func (m *Map) Dropped() int {
	return m.dropped
}

// Lookup resolves protein accessions to taxon ids; Map and DB both satisfy
// it.
type Lookup interface {
	TaxID(accession string) (taxonomy.TaxID, error)
}

// LCA maps every accession through the lookup and resolves the lowest
// common ancestor of the taxa found, ignoring taxa the tree does not know.
// No accessions at all give None.
func LCA(l Lookup, accessions []string, tree *taxonomy.Tree) (taxonomy.TaxID, error) {
	ids := make([]taxonomy.TaxID, len(accessions))

	for i, accession := range accessions {
		id, err := l.TaxID(accession)
		if err != nil {
			return taxonomy.None, err
		}

		ids[i] = id
	}

	return tree.LCA(ids, taxonomy.UnknownIgnore)
}
