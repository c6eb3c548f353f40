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

// package ncbi loads an NCBI reference taxonomy from the nodes, names and
// lineage dumps of a new_taxdump release.
package ncbi

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

// RootID is the id of the root node in every NCBI taxdump release.
const RootID taxonomy.TaxID = "1"

const (
	nodesFile   = "nodes.dmp"
	namesFile   = "names.dmp"
	lineageFile = "taxidlineage.dmp"

	scientificNameClass = "scientific name"

	fieldSep = "\t|\t"
	lineTerm = "\t|"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrMalformedDump     = Error("malformed taxdump line")
	ErrIncompleteArchive = Error("archive is missing taxdump files")
)

type nameEntry struct {
	id         taxonomy.TaxID
	name       string
	scientific bool
}

// loader stages the three dump files so they may arrive in any order, as
// they do when streaming a tar archive.
type loader struct {
	nodes    map[taxonomy.TaxID]*taxonomy.Node
	order    []taxonomy.TaxID
	names    []nameEntry
	lineages map[taxonomy.TaxID][]taxonomy.TaxID
}

func newLoader() *loader {
	return &loader{
		nodes:    make(map[taxonomy.TaxID]*taxonomy.Node),
		lineages: make(map[taxonomy.TaxID][]taxonomy.TaxID),
	}
}

// Load reads nodes.dmp, names.dmp and taxidlineage.dmp from the given
// directory, decompressing any that are stored with a .gz suffix, and
// returns the assembled taxonomy.
func Load(dir string) (*taxonomy.Tree, error) {
	l := newLoader()

	for file, parse := range map[string]func(io.Reader) error{
		nodesFile:   l.parseNodes,
		namesFile:   l.parseNames,
		lineageFile: l.parseLineages,
	} {
		if err := parseDumpFile(dir, file, parse); err != nil {
			return nil, err
		}
	}

	return l.tree()
}

// LoadArchive reads the same three dump files out of a new_taxdump.tar.gz
// archive, ignoring the other dumps it carries.
func LoadArchive(path string) (*taxonomy.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, err
	}

	defer gz.Close()

	l := newLoader()

	seen, err := l.parseArchive(tar.NewReader(gz))
	if err != nil {
		return nil, err
	}

	if seen != 3 {
		return nil, ErrIncompleteArchive
	}

	return l.tree()
}

func (l *loader) parseArchive(tr *tar.Reader) (int, error) {
	seen := 0

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return seen, nil
		} else if err != nil {
			return seen, err
		}

		parse := l.parserFor(filepath.Base(hdr.Name))
		if parse == nil {
			continue
		}

		if err := parse(tr); err != nil {
			return seen, err
		}

		seen++
	}
}

func (l *loader) parserFor(file string) func(io.Reader) error {
	switch file {
	case nodesFile:
		return l.parseNodes
	case namesFile:
		return l.parseNames
	case lineageFile:
		return l.parseLineages
	}

	return nil
}

func parseDumpFile(dir, file string, parse func(io.Reader) error) error {
	path := filepath.Join(dir, file)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		path += ".gz"
		f, err = os.Open(path)
	}

	if err != nil {
		return err
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		if r, err = pgzip.NewReader(f); err != nil {
			return err
		}
	}

	if err := parse(r); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	return nil
}

// splitDumpLine breaks a taxdump line into its fields. Lines end "\t|" once
// the scanner has removed the newline, with "\t|\t" between fields.
func splitDumpLine(line string) []string {
	return strings.Split(strings.TrimSuffix(line, lineTerm), fieldSep)
}

func scanDump(r io.Reader, minFields int, handle func([]string)) error {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := splitDumpLine(scanner.Text())
		if len(fields) < minFields {
			return ErrMalformedDump
		}

		handle(fields)
	}

	return scanner.Err()
}

// parseNodes reads nodes.dmp: taxon id, parent id and rank. The root names
// itself as its parent; it is recorded with no parent instead.
func (l *loader) parseNodes(r io.Reader) error {
	return scanDump(r, 3, func(fields []string) {
		id := taxonomy.TaxID(fields[0])
		node := &taxonomy.Node{
			ID:   id,
			Rank: taxonomy.ParseRank(fields[2]),
		}

		if parent := taxonomy.TaxID(fields[1]); parent != id {
			node.Parent = parent
		}

		l.nodes[id] = node
		l.order = append(l.order, id)
	})
}

// parseNames reads names.dmp: taxon id, name text, unique name and name
// class. Only the id, text and whether the class is "scientific name" are
// kept.
func (l *loader) parseNames(r io.Reader) error {
	return scanDump(r, 4, func(fields []string) {
		l.names = append(l.names, nameEntry{
			id:         taxonomy.TaxID(fields[0]),
			name:       fields[1],
			scientific: fields[3] == scientificNameClass,
		})
	})
}

// parseLineages reads taxidlineage.dmp: taxon id and its space-separated
// ancestor ids, root first. The root's own entry is empty.
func (l *loader) parseLineages(r io.Reader) error {
	return scanDump(r, 2, func(fields []string) {
		ids := strings.Fields(fields[1])
		if len(ids) == 0 {
			return
		}

		ancestors := make([]taxonomy.TaxID, len(ids))
		for i, id := range ids {
			ancestors[i] = taxonomy.TaxID(id)
		}

		l.lineages[taxonomy.TaxID(fields[0])] = ancestors
	})
}

// tree assembles the staged dumps into a Tree, wiring children in dump
// order and giving scientific names priority in the name index.
func (l *loader) tree() (*taxonomy.Tree, error) {
	t := taxonomy.New(taxonomy.NCBI)

	for _, id := range l.order {
		node := l.nodes[id]
		node.Ancestors = l.lineages[id]

		if err := t.Add(node); err != nil {
			return nil, fmt.Errorf("taxon %s: %w", id, err)
		}
	}

	l.wireChildren()
	l.registerNames(t)

	if err := t.SetRoot(RootID); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

func (l *loader) wireChildren() {
	for _, id := range l.order {
		node := l.nodes[id]
		if node.Parent == taxonomy.None {
			continue
		}

		if parent, ok := l.nodes[node.Parent]; ok {
			parent.Children = append(parent.Children, id)
		}
	}
}

func (l *loader) registerNames(t *taxonomy.Tree) {
	for _, entry := range l.names {
		if entry.scientific {
			if node := t.Node(entry.id); node != nil {
				node.Name = entry.name
			}

			t.AddName(entry.name, entry.id)
		} else {
			t.AddNameIfAbsent(entry.name, entry.id)
		}
	}
}
