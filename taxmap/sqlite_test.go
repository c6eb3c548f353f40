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
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

func TestBuilder(t *testing.T) {
	Convey("Given a database builder", t, func() {
		path := filepath.Join(t.TempDir(), "taxa.db")

		b, err := NewBuilder(path, DefaultBatchMem)
		So(err, ShouldBeNil)

		Convey("You can import NCBI rows and query them back", func() {
			err = b.ImportNCBI(strings.NewReader("P12345,562\nQ67890,622\nP12345,622\nX1,999\n"),
				newTestTree(t), Config{TaxonColumn: 1})
			So(err, ShouldBeNil)
			So(b.Rows(), ShouldEqual, 3)
			So(b.Dropped(), ShouldEqual, 1)
			So(b.Close(), ShouldBeNil)

			db, err := OpenDB(path)
			So(err, ShouldBeNil)

			defer func() {
				So(db.Close(), ShouldBeNil)
			}()

			id, err := db.TaxID("P12345")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("562"))

			id, err = db.TaxID("Q67890")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("622"))

			id, err = db.TaxID("nonesuch")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.None)

			id, err = db.TaxID("X1")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.None)

			n, err := db.Len()
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})

		Convey("GTDB rows are resolved to species during the build", func() {
			tree, genomes := newTestGTDB(t)

			err = b.ImportGTDB(strings.NewReader("acc1,GCF_1\nacc2,GCF_9\n"),
				tree, genomes, Config{TaxonColumn: 1})
			So(err, ShouldBeNil)
			So(b.Dropped(), ShouldEqual, 1)
			So(b.Close(), ShouldBeNil)

			db, err := OpenDB(path)
			So(err, ShouldBeNil)

			defer func() {
				So(db.Close(), ShouldBeNil)
			}()

			id, err := db.TaxID("acc1")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.TaxID("s__S one"))

			id, err = db.TaxID("acc2")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, taxonomy.None)
		})

		Convey("Only the keep-first duplicate policy is supported", func() {
			err = b.ImportNCBI(strings.NewReader("P12345,562\n"), newTestTree(t), Config{
				TaxonColumn: 1,
				Duplicates:  Fail,
			})
			So(err, ShouldEqual, ErrBuilderDuplicates)
			So(b.Close(), ShouldBeNil)
		})

		Convey("Adding after closing is an error", func() {
			So(b.Close(), ShouldBeNil)
			So(b.Add("P12345", "562"), ShouldEqual, ErrBuilderClosed)
		})
	})

	Convey("Small memory limits just mean more commits", t, func() {
		path := filepath.Join(t.TempDir(), "taxa.db")

		b, err := NewBuilder(path, 64)
		So(err, ShouldBeNil)

		var sb strings.Builder

		for i := range 100 {
			fmt.Fprintf(&sb, "acc%d,562\n", i)
		}

		err = b.ImportNCBI(strings.NewReader(sb.String()), newTestTree(t),
			Config{TaxonColumn: 1})
		So(err, ShouldBeNil)
		So(b.Close(), ShouldBeNil)

		db, err := OpenDB(path)
		So(err, ShouldBeNil)

		defer func() {
			So(db.Close(), ShouldBeNil)
		}()

		n, err := db.Len()
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 100)

		id, err := db.TaxID("acc99")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, taxonomy.TaxID("562"))
	})
}
