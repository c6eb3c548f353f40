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
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
)

func newTestTree(t *testing.T) *taxonomy.Tree {
	t.Helper()

	tree := taxonomy.New(taxonomy.NCBI)

	for _, node := range []*taxonomy.Node{
		{ID: "1", Name: "root", Rank: taxonomy.NoRank,
			Children: []taxonomy.TaxID{"2"}},
		{ID: "2", Name: "bacteria", Rank: taxonomy.Phylum, Parent: "1",
			Ancestors: []taxonomy.TaxID{"1"},
			Children:  []taxonomy.TaxID{"3", "4"}},
		{ID: "3", Name: "escherichia", Rank: taxonomy.Genus, Parent: "2",
			Ancestors: []taxonomy.TaxID{"1", "2"},
			Children:  []taxonomy.TaxID{"562"}},
		{ID: "4", Name: "shigella", Rank: taxonomy.Genus, Parent: "2",
			Ancestors: []taxonomy.TaxID{"1", "2"},
			Children:  []taxonomy.TaxID{"622"}},
		{ID: "562", Name: "escherichia coli", Rank: taxonomy.Species,
			Parent:    "3",
			Ancestors: []taxonomy.TaxID{"1", "2", "3"}},
		{ID: "622", Name: "shigella dysenteriae", Rank: taxonomy.Species,
			Parent:    "4",
			Ancestors: []taxonomy.TaxID{"1", "2", "4"}},
	} {
		if err := tree.Add(node); err != nil {
			t.Fatal(err)
		}
	}

	if err := tree.SetRoot("1"); err != nil {
		t.Fatal(err)
	}

	return tree
}

func newTestGTDB(t *testing.T) (*taxonomy.Tree, *gtdb.Genomes) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bac120_taxonomy.tsv")
	content := "RS_GCF_1\td__B;p__P;c__C;o__O;f__F;g__G;s__S one\n" +
		"RS_GCF_2\td__B;p__P;c__C;o__O;f__F;g__G;s__S two\n"

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	tree, genomes, err := gtdb.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	return tree, genomes
}

func newTestNCBIMeta(t *testing.T) *gtdb.NCBIMap {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bac120_metadata.tsv")
	content := "accession\tncbi_taxid\n" +
		"RS_GCF_1\t562\n" +
		"RS_GCF_2\t622\n"

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	taxa, err := gtdb.LoadNCBIMap(path)
	if err != nil {
		t.Fatal(err)
	}

	return taxa
}

func TestNCBIMap(t *testing.T) {
	Convey("Given an NCBI accession mapping", t, func() {
		tree := newTestTree(t)

		m, err := NewNCBI(strings.NewReader("P12345,562\nQ67890,622\n"), tree, Config{
			TaxonColumn: 1,
		})
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 2)

		Convey("Accessions resolve to their taxon ids", func() {
			id, err := m.TaxID("P12345")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("562"))

			id, err = m.TaxID("nonesuch")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.None)
		})
	})

	Convey("Column indices and delimiters are configurable", t, func() {
		m, err := NewNCBI(strings.NewReader("562\tx\tP12345\n"), newTestTree(t), Config{
			AccessionColumn: 2,
			TaxonColumn:     0,
			Delimiter:       '\t',
		})
		So(err, ShouldBeNil)

		id, err := m.TaxID("P12345")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.TaxID("562"))
	})

	Convey("An accession pattern keeps only the matching part", t, func() {
		m, err := NewNCBI(strings.NewReader("sp|P12345|ALBU,562\n!!!,622\n"),
			newTestTree(t), Config{
				TaxonColumn:      1,
				AccessionPattern: regexp.MustCompile(`P\w+`),
			})
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 1)
		So(m.Dropped(), ShouldEqual, 1)

		id, err := m.TaxID("P12345")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.TaxID("562"))
	})

	Convey("Taxa the tree does not contain are dropped and counted", t, func() {
		m, err := NewNCBI(strings.NewReader("accA,999\naccB,562\n"),
			newTestTree(t), Config{TaxonColumn: 1})
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 1)
		So(m.Dropped(), ShouldEqual, 1)

		id, err := m.TaxID("accA")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.None)

		id, err = m.TaxID("accB")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.TaxID("562"))
	})

	Convey("Duplicate accessions follow the configured policy", t, func() {
		tree := newTestTree(t)
		input := "P12345,3\nP12345,4\n"

		Convey("KeepFirst keeps the first assignment", func() {
			m, err := NewNCBI(strings.NewReader(input), tree, Config{TaxonColumn: 1})
			So(err, ShouldBeNil)

			id, err := m.TaxID("P12345")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("3"))
		})

		Convey("Fail rejects the file", func() {
			_, err := NewNCBI(strings.NewReader(input), tree, Config{
				TaxonColumn: 1,
				Duplicates:  Fail,
			})
			So(err, ShouldEqual, ErrDuplicate)
		})

		Convey("MergeLCA resolves the group to its lowest common ancestor", func() {
			m, err := NewNCBI(strings.NewReader(input), tree, Config{
				TaxonColumn: 1,
				Duplicates:  MergeLCA,
			})
			So(err, ShouldBeNil)

			id, err := m.TaxID("P12345")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("2"))
		})
	})

	Convey("A nil taxonomy is rejected", t, func() {
		_, err := NewNCBI(strings.NewReader("P12345,562\n"), nil, Config{
			TaxonColumn: 1,
		})
		So(err, ShouldEqual, ErrNeedTree)
	})

	Convey("Bad input is rejected", t, func() {
		tree := newTestTree(t)

		_, err := NewNCBI(strings.NewReader("P12345,notanumber\n"), tree, Config{
			TaxonColumn: 1,
		})
		So(err, ShouldEqual, ErrTaxonNotNumeric)

		_, err = NewNCBI(strings.NewReader("P12345,562\n"), tree, Config{})
		So(err, ShouldEqual, ErrSameColumns)

		_, err = NewNCBI(strings.NewReader("P12345\n"), tree, Config{TaxonColumn: 1})
		So(err, ShouldEqual, ErrColumnRange)
	})

	Convey("GTDB genomes can be stored as NCBI taxon ids via metadata", t, func() {
		m, err := NewNCBI(strings.NewReader("accA,GCF_1\naccB,GCF_9\n"),
			newTestTree(t), Config{
				TaxonColumn: 1,
				GenomeTaxa:  newTestNCBIMeta(t),
			})
		So(err, ShouldBeNil)
		So(m.Len(), ShouldEqual, 1)
		So(m.Dropped(), ShouldEqual, 1)

		id, err := m.TaxID("accA")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.TaxID("562"))
	})
}

func TestGTDBMap(t *testing.T) {
	Convey("Given a GTDB accession mapping and genome index", t, func() {
		tree, genomes := newTestGTDB(t)

		m, err := NewGTDB(strings.NewReader("acc1,GCF_1\nacc2,RS_GCF_2\nacc3,GCF_9\n"),
			tree, genomes, Config{TaxonColumn: 1})
		So(err, ShouldBeNil)

		Convey("Accessions resolve through genomes to species", func() {
			id, err := m.TaxID("acc1")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("s__S one"))

			id, err = m.TaxID("acc2")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("s__S two"))

			So(m.Genome("acc2"), ShouldEqual, "RS_GCF_2")
		})

		Convey("Unreleased genomes are dropped and resolve to None", func() {
			So(m.Len(), ShouldEqual, 2)
			So(m.Dropped(), ShouldEqual, 1)

			id, err := m.TaxID("acc3")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.None)
		})

		Convey("MergeLCA groups resolve via species", func() {
			merged, err := NewGTDB(strings.NewReader("accX,GCF_1\naccX,GCF_2\n"),
				tree, genomes, Config{
					TaxonColumn: 1,
					Duplicates:  MergeLCA,
				})
			So(err, ShouldBeNil)

			id, err := merged.TaxID("accX")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("g__G"))
		})
	})

	Convey("A GTDB mapping without a genome index is rejected", t, func() {
		_, err := NewGTDB(strings.NewReader(""), nil, nil, Config{TaxonColumn: 1})
		So(err, ShouldEqual, ErrNeedGenomes)
	})
}

func TestMapLCA(t *testing.T) {
	Convey("Accession lists resolve to the LCA of their taxa", t, func() {
		tree := newTestTree(t)

		m, err := NewNCBI(strings.NewReader("a,3\nb,4\nc,3\n"), tree,
			Config{TaxonColumn: 1})
		So(err, ShouldBeNil)

		lca, err := LCA(m, []string{"a", "b", "missing"}, tree)
		So(err, ShouldBeNil)
		So(lca, ShouldEqual, taxonomy.TaxID("2"))

		lca, err = LCA(m, []string{"a", "c"}, tree)
		So(err, ShouldBeNil)
		So(lca, ShouldEqual, taxonomy.TaxID("3"))

		lca, err = LCA(m, nil, tree)
		So(err, ShouldBeNil)
		So(lca, ShouldEqual, taxonomy.None)
	})
}
