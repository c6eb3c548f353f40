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

package peptide

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	. "github.com/smartystreets/goconvey/convey"
)

const testRowData = "Sequence\tPeptide\tRT\tScan\tm/z\tCharge\tppm\tLength\t" +
	"Confidence\tArea\tMass\tAccession\tPTM\tSource File\tIgnored\n" +
	"PEPTIDE\tPEP(+57.02)TIDE\t10.5\t101\t400.1\t2\t1.5\t7\t10\t100\t800.2\t" +
	"P1;P2\tCarbamidomethylation\trun1.raw\tjunk\n" +
	"\n" +
	"SEQ\tSEQ\t1\t5\t\t1\t\t3\t99\t10\t\tP9\t\trun1.raw\t-\n"

func TestRowParser(t *testing.T) {
	Convey("RowParser parses header-described rows", t, func() {
		p := NewRowParser(strings.NewReader(testRowData))

		So(p.Scan(), ShouldBeTrue)
		So(p.Row.Sequence, ShouldEqual, "PEPTIDE")
		So(p.Row.Peptide, ShouldEqual, "PEP(+57.02)TIDE")
		So(p.Row.RT, ShouldEqual, 10.5)
		So(p.Row.Scan, ShouldEqual, 101)
		So(p.Row.MZ, ShouldEqual, 400.1)
		So(p.Row.Charge, ShouldEqual, 2)
		So(p.Row.Length, ShouldEqual, 7)
		So(p.Row.Confidence, ShouldEqual, 10)
		So(p.Row.Accessions, ShouldResemble, []string{"P1", "P2"})
		So(p.Row.PTM, ShouldEqual, "Carbamidomethylation")
		So(p.Row.SourceFile, ShouldEqual, "run1.raw")

		Convey("with blank lines and empty numeric cells tolerated", func() {
			So(p.Scan(), ShouldBeTrue)
			So(p.Row.Sequence, ShouldEqual, "SEQ")
			So(p.Row.MZ, ShouldEqual, 0)
			So(p.Row.PPM, ShouldEqual, 0)
			So(p.Row.Accessions, ShouldResemble, []string{"P9"})

			So(p.Scan(), ShouldBeFalse)
			So(p.Err(), ShouldBeNil)
		})
	})

	Convey("RowParser rejects bad input", t, func() {
		Convey("such as no header at all", func() {
			p := NewRowParser(strings.NewReader(""))
			So(p.Scan(), ShouldBeFalse)
			So(p.Err(), ShouldWrap, ErrNoHeader)
		})

		Convey("such as a header missing a required column", func() {
			p := NewRowParser(strings.NewReader("Sequence\tPeptide\n"))
			So(p.Scan(), ShouldBeFalse)
			So(p.Err(), ShouldWrap, ErrMissingColumn)
		})

		Convey("such as a short row", func() {
			data := strings.Replace(testRowData, "\trun1.raw\tjunk", "", 1)

			p := NewRowParser(strings.NewReader(data))
			So(p.Scan(), ShouldBeFalse)
			So(p.Err(), ShouldWrap, ErrTooFewColumns)
		})

		Convey("such as a non-numeric value in a numeric column", func() {
			data := strings.Replace(testRowData, "\t400.1\t", "\tlots\t", 1)

			p := NewRowParser(strings.NewReader(data))
			So(p.Scan(), ShouldBeFalse)
			So(p.Err(), ShouldWrap, ErrBadNumber)
		})
	})

	Convey("ParseFile streams gzip compressed row files", t, func() {
		path := filepath.Join(t.TempDir(), "rows.tsv.gz")

		f, err := os.Create(path)
		So(err, ShouldBeNil)

		gz := pgzip.NewWriter(f)
		_, err = gz.Write([]byte(testRowData))
		So(err, ShouldBeNil)
		So(gz.Close(), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		var sequences []string

		err = ParseFile(path, func(row Row) error {
			sequences = append(sequences, row.Sequence)

			return nil
		})
		So(err, ShouldBeNil)
		So(sequences, ShouldResemble, []string{"PEPTIDE", "SEQ"})
	})
}
