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

package samples

import (
	"bytes"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/metapep/funcmap"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

func dbRecord(sequence, sourceFile, sample string) peptide.Record {
	return peptide.Record{
		Sequence:   sequence,
		Peptide:    sequence,
		PSMCount:   3,
		Confidence: 42.5,
		Area:       1e6,
		Accessions: []string{"P1", "P2"},
		SourceFile: sourceFile,
		SampleName: sample,
	}
}

func deNovoRecord(sequence, sourceFile, sample string) peptide.Record {
	return peptide.Record{
		Sequence:         sequence,
		Peptide:          sequence,
		DeNovoConfidence: 90,
		DeNovoMatchCount: 2,
		DeNovoSourceFile: sourceFile,
		SampleName:       sample,
	}
}

func TestConcat(t *testing.T) {
	meta := Metadata{
		DBSearchFormat:         "peaks",
		DBSearchConfidenceUnit: "-10lgp",
		TaxonomySystem:         "NCBI",
	}

	Convey("Given tables with disjoint sources and agreeing metadata", t, func() {
		a := NewTable(meta, []peptide.Record{dbRecord("PEPTIDE", "run1.mzML", "s1")})
		b := NewTable(meta, []peptide.Record{dbRecord("SEQVENCE", "run2.mzML", "s2")})

		Convey("Concat produces one table with all their rows", func() {
			merged, err := Concat([]*Table{a, b})
			So(err, ShouldBeNil)
			So(merged.Records, ShouldHaveLength, 2)
			So(merged.Meta, ShouldResemble, meta)
			So(merged.SampleNames(), ShouldResemble, []string{"s1", "s2"})
			So(merged.ID, ShouldNotEqual, a.ID)
		})

		Convey("Unset metadata fields take the value another table defines", func() {
			b.Meta = Metadata{FunctionDatabase: "eggnog"}

			merged, err := Concat([]*Table{a, b})
			So(err, ShouldBeNil)
			So(merged.Meta.DBSearchFormat, ShouldEqual, "peaks")
			So(merged.Meta.FunctionDatabase, ShouldEqual, "eggnog")
		})

		Convey("Conflicting metadata fails naming the field", func() {
			b.Meta.TaxonomySystem = "GTDB"

			_, err := Concat([]*Table{a, b})
			So(err, ShouldWrap, ErrFormatConflict)
			So(err.Error(), ShouldContainSubstring, "taxonomy_system")
		})

		Convey("A shared source file fails naming the file", func() {
			b.Records[0].SourceFile = "run1.mzML"

			_, err := Concat([]*Table{a, b})
			So(err, ShouldWrap, ErrRedundantSource)
			So(err.Error(), ShouldContainSubstring, "run1.mzML")
		})

		Convey("A de novo source clashing with a db search source also fails", func() {
			b.Records = append(b.Records, deNovoRecord("AAA", "run1.mzML", "s2"))

			_, err := Concat([]*Table{a, b})
			So(err, ShouldWrap, ErrRedundantSource)
		})
	})

	Convey("Concat of no tables fails", t, func() {
		_, err := Concat(nil)
		So(err, ShouldWrap, ErrNoTables)
	})
}

func TestRemoveSamples(t *testing.T) {
	Convey("Given a merged table with two samples", t, func() {
		annotated := dbRecord("PEPTIDE", "run1.mzML", "s1")
		annotated.TaxonID = "562"
		annotated.Function = funcmap.Annotation{KO: "K00001"}

		table := NewTable(Metadata{
			DBSearchFormat:   "peaks",
			DeNovoFormat:     "novor",
			TaxonomySystem:   "NCBI",
			FunctionDatabase: "eggnog",
		}, []peptide.Record{
			annotated,
			deNovoRecord("SEQVENCE", "run2.mzML", "s2"),
		})

		Convey("Removing one sample drops its records", func() {
			got := RemoveSamples(table, []string{"s2"})
			So(got.Records, ShouldHaveLength, 1)
			So(got.SampleNames(), ShouldResemble, []string{"s1"})

			Convey("and clears metadata its data alone supported", func() {
				So(got.Meta.DeNovoFormat, ShouldBeEmpty)
				So(got.Meta.DBSearchFormat, ShouldEqual, "peaks")
				So(got.Meta.TaxonomySystem, ShouldEqual, "NCBI")
				So(got.Meta.FunctionDatabase, ShouldEqual, "eggnog")
			})
		})

		Convey("Removing every sample clears all metadata", func() {
			got := RemoveSamples(table, []string{"s1", "s2"})
			So(got.Records, ShouldBeEmpty)
			So(got.Meta, ShouldResemble, Metadata{})
		})

		Convey("The input table is left untouched", func() {
			RemoveSamples(table, []string{"s1", "s2"})
			So(table.Records, ShouldHaveLength, 2)
			So(table.Meta.DBSearchFormat, ShouldEqual, "peaks")
		})
	})
}

func TestRoundTrip(t *testing.T) {
	Convey("Given an annotated table", t, func() {
		record := dbRecord("PEPTIDE", "run1.mzML", "s1")
		record.TaxonID = "562"
		record.TaxonName = "escherichia coli"
		record.LineageIDs[taxonomy.Domain] = "2"
		record.LineageIDs[taxonomy.Species] = "562"
		record.LineageNames[taxonomy.Domain] = "bacteria"
		record.LineageNames[taxonomy.Species] = "escherichia coli"
		record.Function = funcmap.Annotation{
			Query:    "P1",
			Evalue:   1e-10,
			EvalueOK: true,
			KO:       "K00001",
		}

		table := NewTable(Metadata{
			DBSearchFormat: "peaks",
			TaxonomySystem: "NCBI",
		}, []peptide.Record{
			record,
			deNovoRecord("SEQVENCE", "run2.mzML", "s2"),
		})

		Convey("Write then Read restores it exactly", func() {
			var buf bytes.Buffer

			So(Write(&buf, table), ShouldBeNil)

			got, err := Read(&buf)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, table.ID)
			So(got.Meta, ShouldResemble, table.Meta)
			So(got.Records, ShouldResemble, table.Records)
		})

		Convey("WriteFile round-trips through gzip", func() {
			path := filepath.Join(t.TempDir(), "table.tsv.gz")

			So(WriteFile(path, table), ShouldBeNil)

			got, err := ReadFile(path)
			So(err, ShouldBeNil)
			So(got.Records, ShouldResemble, table.Records)
		})

		Convey("Reading junk fails", func() {
			_, err := Read(bytes.NewBufferString("not a table\n"))
			So(err, ShouldWrap, ErrBadHeader)
		})
	})
}
