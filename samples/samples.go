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

// package samples holds annotated peptide records for one or more samples in
// a Table, and merges per-sample tables in to a project table while keeping
// their format metadata consistent and their raw source files disjoint.

package samples

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wtsi-hgi/metapep/funcmap"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoTables        = Error("no tables to concatenate")
	ErrFormatConflict  = Error("tables disagree on a format metadata field")
	ErrRedundantSource = Error("raw source file contributes to more than one table")
)

// Metadata records how a table's records were produced. An empty string
// means the field is not set, because the table holds no data of that kind
// yet; Concat fills unset fields from any input table that defines them.
type Metadata struct {
	DBSearchFormat         string
	DBSearchConfidenceUnit string
	DeNovoFormat           string
	DeNovoConfidenceUnit   string
	TaxonomySystem         string
	FunctionDatabase       string
}

// metadataFields gives stable names to the Metadata fields, shared by the
// consensus check and the on-disk header block.
var metadataFields = [...]string{
	"db_search_format",
	"db_search_confidence_unit",
	"de_novo_format",
	"de_novo_confidence_unit",
	"taxonomy_system",
	"function_database",
}

func (m *Metadata) fields() [6]*string {
	return [6]*string{
		&m.DBSearchFormat, &m.DBSearchConfidenceUnit,
		&m.DeNovoFormat, &m.DeNovoConfidenceUnit,
		&m.TaxonomySystem, &m.FunctionDatabase,
	}
}

// Table is a collection of aggregated, annotated peptide records together
// with the format metadata describing how they were made. ID identifies the
// table (and any export snapshot made from it); NewTable assigns a fresh
// one.
type Table struct {
	ID      uuid.UUID
	Meta    Metadata
	Records []peptide.Record
}

// NewTable returns a Table with a fresh id holding the given records.
func NewTable(meta Metadata, records []peptide.Record) *Table {
	return &Table{ID: uuid.New(), Meta: meta, Records: records}
}

// SampleNames returns the distinct sample names of the table's records, in
// first-seen order.
func (t *Table) SampleNames() []string {
	var names []string

	seen := make(map[string]bool)

	for i := range t.Records {
		if name := t.Records[i].SampleName; !seen[name] {
			seen[name] = true

			names = append(names, name)
		}
	}

	return names
}

// SourceFiles returns the set of raw source files that contributed records
// to the table, across both the db search and de novo sides.
func (t *Table) SourceFiles() map[string]bool {
	files := make(map[string]bool)

	for i := range t.Records {
		addSourceFile(files, t.Records[i].SourceFile)
		addSourceFile(files, t.Records[i].DeNovoSourceFile)
	}

	return files
}

func addSourceFile(files map[string]bool, file string) {
	if file != "" {
		files[file] = true
	}
}

// Concat merges tables in to one project table. Metadata is resolved by
// consensus: a field unset in one table takes its value from any table that
// sets it, but two tables setting different values is an ErrFormatConflict
// naming the field. The raw source files of the inputs must be pairwise
// disjoint, or the merge fails with an ErrRedundantSource naming the file.
// Either failure leaves every input untouched; on success the result is a
// new table and the inputs remain valid.
func Concat(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}

	meta, err := consensusMetadata(tables)
	if err != nil {
		return nil, err
	}

	if err := checkDisjointSources(tables); err != nil {
		return nil, err
	}

	var records []peptide.Record

	for _, table := range tables {
		records = append(records, table.Records...)
	}

	return NewTable(meta, records), nil
}

func consensusMetadata(tables []*Table) (Metadata, error) {
	var meta Metadata

	fields := meta.fields()

	for _, table := range tables {
		tm := table.Meta

		for i, value := range tm.fields() {
			if *value == "" {
				continue
			}

			if *fields[i] == "" {
				*fields[i] = *value
			} else if *fields[i] != *value {
				return Metadata{}, fmt.Errorf("%w: %s (%q vs %q)",
					ErrFormatConflict, metadataFields[i], *fields[i], *value)
			}
		}
	}

	return meta, nil
}

func checkDisjointSources(tables []*Table) error {
	seen := make(map[string]bool)

	for _, table := range tables {
		for file := range table.SourceFiles() {
			if seen[file] {
				return fmt.Errorf("%w: %s", ErrRedundantSource, file)
			}

			seen[file] = true
		}
	}

	return nil
}

// RemoveSamples returns a new table without the records of the named
// samples. Metadata fields whose supporting data no longer exists in any
// remaining record are cleared: the db search format when no record retains
// PSMs, the de novo format when no record retains de novo matches, the
// taxonomy system when no record retains a taxon, and the function database
// when no record retains a function annotation.
func RemoveSamples(t *Table, names []string) *Table {
	remove := make(map[string]bool, len(names))
	for _, name := range names {
		remove[name] = true
	}

	records := make([]peptide.Record, 0, len(t.Records))

	for i := range t.Records {
		if !remove[t.Records[i].SampleName] {
			records = append(records, t.Records[i])
		}
	}

	table := &Table{ID: uuid.New(), Meta: t.Meta, Records: records}

	clearUnsupportedMetadata(table)

	return table
}

func clearUnsupportedMetadata(t *Table) {
	var dbSearch, deNovo, taxa, functions bool

	for i := range t.Records {
		record := &t.Records[i]

		dbSearch = dbSearch || record.PSMCount > 0
		deNovo = deNovo || record.DeNovoMatchCount > 0
		taxa = taxa || record.TaxonID != taxonomy.None
		functions = functions || record.Function != funcmap.Annotation{}
	}

	if !dbSearch {
		t.Meta.DBSearchFormat = ""
		t.Meta.DBSearchConfidenceUnit = ""
	}

	if !deNovo {
		t.Meta.DeNovoFormat = ""
		t.Meta.DeNovoConfidenceUnit = ""
	}

	if !taxa {
		t.Meta.TaxonomySystem = ""
	}

	if !functions {
		t.Meta.FunctionDatabase = ""
	}
}
