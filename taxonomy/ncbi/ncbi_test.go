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

package ncbi

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

const (
	testNodes = "1\t|\t1\t|\tno rank\t|\n" +
		"2\t|\t1\t|\tsuperkingdom\t|\n" +
		"6\t|\t2\t|\tphylum\t|\n" +
		"3\t|\t6\t|\tgenus\t|\n" +
		"4\t|\t6\t|\tgenus\t|\n" +
		"5\t|\t3\t|\tspecies\t|\n"

	testNames = "1\t|\troot\t|\t\t|\tscientific name\t|\n" +
		"2\t|\tBacteria\t|\tBacteria <bacteria>\t|\tscientific name\t|\n" +
		"2\t|\teubacteria\t|\t\t|\tsynonym\t|\n" +
		"6\t|\tProteobacteria\t|\t\t|\tscientific name\t|\n" +
		"3\t|\tEscherichia\t|\t\t|\tscientific name\t|\n" +
		"4\t|\tShigella\t|\t\t|\tscientific name\t|\n" +
		"5\t|\tEscherichia coli\t|\t\t|\tscientific name\t|\n" +
		"5\t|\tE. coli\t|\t\t|\tcommon name\t|\n"

	testLineages = "1\t|\t\t|\n" +
		"2\t|\t1 \t|\n" +
		"6\t|\t1 2 \t|\n" +
		"3\t|\t1 2 6 \t|\n" +
		"4\t|\t1 2 6 \t|\n" +
		"5\t|\t1 2 6 3 \t|\n"
)

func writeDump(t *testing.T, dir, name, content string, gzipped bool) {
	t.Helper()

	path := filepath.Join(dir, name)
	if gzipped {
		path += ".gz"
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	var w interface {
		Write([]byte) (int, error)
		Close() error
	} = f

	if gzipped {
		w = pgzip.NewWriter(f)
	}

	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if gzipped {
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	gz := pgzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0600,
			Size: int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}

		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	for _, c := range []interface{ Close() error }{tw, gz, f} {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func checkTestTree(tree *taxonomy.Tree) {
	So(tree.System(), ShouldEqual, taxonomy.NCBI)
	So(tree.Root(), ShouldEqual, RootID)
	So(tree.Len(), ShouldEqual, 6)

	So(tree.Name("5"), ShouldEqual, "Escherichia coli")
	So(tree.RankOf("2"), ShouldEqual, taxonomy.Domain)
	So(tree.RankOf("1"), ShouldEqual, taxonomy.NoRank)

	So(tree.IDForName("Bacteria"), ShouldEqual, taxonomy.TaxID("2"))
	So(tree.IDForName("eubacteria"), ShouldEqual, taxonomy.TaxID("2"))
	So(tree.IDForName("E. coli"), ShouldEqual, taxonomy.TaxID("5"))

	So(tree.Ancestors("5"), ShouldResemble,
		[]taxonomy.TaxID{"1", "2", "6", "3", "5"})
	So(tree.Children("6"), ShouldResemble, []taxonomy.TaxID{"3", "4"})

	So(tree.Lineage("5"), ShouldResemble,
		taxonomy.Lineage{"2", "6", taxonomy.None, taxonomy.None, taxonomy.None,
			"3", "5"})

	lca, err := tree.LCA([]taxonomy.TaxID{"3", "4"}, taxonomy.UnknownIgnore)
	So(err, ShouldBeNil)
	So(lca, ShouldEqual, taxonomy.TaxID("6"))
}

func TestLoad(t *testing.T) {
	Convey("Given a directory of taxdump files", t, func() {
		dir := t.TempDir()

		writeDump(t, dir, "nodes.dmp", testNodes, false)
		writeDump(t, dir, "names.dmp", testNames, false)
		writeDump(t, dir, "taxidlineage.dmp", testLineages, false)

		Convey("Load assembles the taxonomy", func() {
			tree, err := Load(dir)
			So(err, ShouldBeNil)

			checkTestTree(tree)
		})
	})

	Convey("Load decompresses gzipped dumps", t, func() {
		dir := t.TempDir()

		writeDump(t, dir, "nodes.dmp", testNodes, true)
		writeDump(t, dir, "names.dmp", testNames, false)
		writeDump(t, dir, "taxidlineage.dmp", testLineages, true)

		tree, err := Load(dir)
		So(err, ShouldBeNil)

		checkTestTree(tree)
	})

	Convey("A node naming an undefined parent is rejected", t, func() {
		dir := t.TempDir()

		nodes := "1\t|\t1\t|\tno rank\t|\n" +
			"2\t|\t1\t|\tphylum\t|\n" +
			"3\t|\t99\t|\tgenus\t|\n"

		writeDump(t, dir, "nodes.dmp", nodes, false)
		writeDump(t, dir, "names.dmp", "1\t|\troot\t|\t\t|\tscientific name\t|\n", false)
		writeDump(t, dir, "taxidlineage.dmp", "1\t|\t\t|\n", false)

		_, err := Load(dir)
		So(errors.Is(err, taxonomy.ErrMissingParent), ShouldBeTrue)
	})

	Convey("Load fails on missing or malformed dumps", t, func() {
		dir := t.TempDir()

		_, err := Load(dir)
		So(err, ShouldNotBeNil)

		writeDump(t, dir, "nodes.dmp", "not a dump\n", false)
		writeDump(t, dir, "names.dmp", testNames, false)
		writeDump(t, dir, "taxidlineage.dmp", testLineages, false)

		_, err = Load(dir)
		So(errors.Is(err, ErrMalformedDump), ShouldBeTrue)
	})
}

func TestLoadArchive(t *testing.T) {
	Convey("Given a new_taxdump style archive", t, func() {
		path := filepath.Join(t.TempDir(), "new_taxdump.tar.gz")

		writeArchive(t, path, map[string]string{
			"nodes.dmp":         testNodes,
			"names.dmp":         testNames,
			"taxidlineage.dmp":  testLineages,
			"citations.dmp":     "ignored\n",
			"merged.dmp":        "ignored\n",
			"rankedlineage.dmp": "ignored\n",
		})

		Convey("LoadArchive assembles the taxonomy from it", func() {
			tree, err := LoadArchive(path)
			So(err, ShouldBeNil)

			checkTestTree(tree)
		})
	})

	Convey("An archive missing a dump is rejected", t, func() {
		path := filepath.Join(t.TempDir(), "partial.tar.gz")

		writeArchive(t, path, map[string]string{
			"nodes.dmp": testNodes,
			"names.dmp": testNames,
		})

		_, err := LoadArchive(path)
		So(err, ShouldEqual, ErrIncompleteArchive)
	})
}
