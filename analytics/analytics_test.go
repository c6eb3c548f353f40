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

package analytics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

const tolerance = 1e-9

// lineageRecord gives a record the gap-filled lineage names implied by the
// given classified names, and the given PSM count.
func lineageRecord(psms int, names ...string) peptide.Record {
	record := peptide.Record{PSMCount: psms}

	for i, name := range names {
		record.LineageNames[i] = name
	}

	carry := ""

	for i := taxonomy.NumRanks - 1; i >= 0; i-- {
		if record.LineageNames[i] != "" {
			carry = record.LineageNames[i]
		} else {
			record.LineageNames[i] = carry
		}
	}

	return record
}

func TestAllocation(t *testing.T) {
	// target: bacteria at domain, proteobacteria at phylum, escherichia at
	// genus, gap filled through the middle ranks.
	target := [taxonomy.NumRanks]string{
		"bacteria", "proteobacteria",
		"escherichia", "escherichia", "escherichia", "escherichia", "",
	}

	Convey("Given records with varying taxonomic resolution", t, func() {
		records := []peptide.Record{
			// on the full target lineage
			lineageRecord(4, "bacteria", "proteobacteria", "", "", "", "escherichia"),
			// stops at phylum: unannotated below
			lineageRecord(3, "bacteria", "proteobacteria"),
			// branches to another genus
			lineageRecord(2, "bacteria", "proteobacteria", "", "", "", "shigella"),
			// branches at phylum
			lineageRecord(5, "bacteria", "firmicutes", "", "", "", "bacillus"),
			// never annotated at all
			lineageRecord(6),
		}

		report, err := Allocation(records, target, PSMs)
		So(err, ShouldBeNil)

		Convey("Gap-filled duplicate ranks are collapsed", func() {
			So(report.Target, ShouldResemble, []RankName{
				{Rank: taxonomy.Domain, Name: "bacteria"},
				{Rank: taxonomy.Phylum, Name: "proteobacteria"},
				{Rank: taxonomy.Genus, Name: "escherichia"},
			})
			So(report.Transitions, ShouldHaveLength, 3)
		})

		Convey("The Root transition covers every record", func() {
			tr := report.Transitions[0]
			So(tr.FromName, ShouldEqual, RootName)
			So(tr.ToName, ShouldEqual, "bacteria")
			So(tr.Total, ShouldAlmostEqual, 20, tolerance)
			So(tr.Unannotated, ShouldAlmostEqual, 6, tolerance)
			So(tr.Continuing, ShouldAlmostEqual, 14, tolerance)
			So(tr.BranchingTotal(), ShouldAlmostEqual, 0, tolerance)
		})

		Convey("Branching losses are broken down per diverging taxon", func() {
			tr := report.Transitions[1]
			So(tr.ToName, ShouldEqual, "proteobacteria")
			So(tr.Total, ShouldAlmostEqual, 14, tolerance)
			So(tr.Branching["firmicutes"], ShouldAlmostEqual, 5, tolerance)
			So(tr.Continuing, ShouldAlmostEqual, 9, tolerance)

			tr = report.Transitions[2]
			So(tr.ToName, ShouldEqual, "escherichia")
			So(tr.Total, ShouldAlmostEqual, 9, tolerance)
			So(tr.Unannotated, ShouldAlmostEqual, 3, tolerance)
			So(tr.Branching["shigella"], ShouldAlmostEqual, 2, tolerance)
			So(tr.Continuing, ShouldAlmostEqual, 4, tolerance)
		})

		Convey("Each transition's parts sum to its total", func() {
			for _, tr := range report.Transitions {
				So(tr.Unannotated+tr.BranchingTotal()+tr.Continuing,
					ShouldAlmostEqual, tr.Total, tolerance)
			}
		})

		Convey("Cumulative annotation drop compounds the loss fractions", func() {
			// root->domain loses 6/20, genus transition loses 3/9.
			drop, ok := report.CumulativeAnnotationDrop(taxonomy.NoRank)
			So(ok, ShouldBeTrue)
			So(drop, ShouldAlmostEqual, (1-(1-6.0/20)*(1-3.0/9))*100, tolerance)

			drop, ok = report.CumulativeAnnotationDrop(taxonomy.Domain)
			So(ok, ShouldBeTrue)
			So(drop, ShouldAlmostEqual, (1-(1-3.0/9))*100, tolerance)

			Convey("and is missing below the last classified transition", func() {
				_, ok := report.CumulativeAnnotationDrop(taxonomy.Species)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("An all-missing target lineage is rejected", t, func() {
		_, err := Allocation(nil, [taxonomy.NumRanks]string{}, PSMs)
		So(err, ShouldEqual, ErrEmptyLineage)
	})

	Convey("De novo match counts can be the quantity", t, func() {
		records := []peptide.Record{{DeNovoMatchCount: 7,
			LineageNames: [taxonomy.NumRanks]string{"bacteria"}}}

		report, err := Allocation(records,
			[taxonomy.NumRanks]string{"bacteria"}, Matches)
		So(err, ShouldBeNil)
		So(report.Transitions[0].Continuing, ShouldAlmostEqual, 7, tolerance)
	})
}
