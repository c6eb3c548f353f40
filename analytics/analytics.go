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

// package analytics quantifies how peptide quantity is allocated along a
// target lineage, and where taxonomic resolution is lost moving from each
// rank to the next finer one.

package analytics

import (
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

// RootName labels the pseudo-rank above Domain that the whole record set
// belongs to, used for the first transition of a report.
const RootName = "Root"

type Error string

func (e Error) Error() string { return string(e) }

const ErrEmptyLineage = Error("target lineage has no classified ranks")

// Quantity extracts the quantity a record contributes, eg. its PSM count.
type Quantity func(r *peptide.Record) float64

// PSMs counts a record's peptide spectrum matches.
func PSMs(r *peptide.Record) float64 { return float64(r.PSMCount) }

// Matches counts a record's de novo matches.
func Matches(r *peptide.Record) float64 { return float64(r.DeNovoMatchCount) }

// Transition is the quantity decomposition between two adjacent classified
// ranks of a target lineage. Of the Total quantity at the coarser (From)
// rank, Unannotated is the part whose records have no classification at the
// finer (To) rank, Branching is the part classified to a different taxon
// there (broken down per diverging taxon name), and Continuing is the part
// that stays on the target lineage. The three always sum to Total.
type Transition struct {
	From taxonomy.Rank // NoRank for the Root pseudo-rank
	To   taxonomy.Rank

	FromName string
	ToName   string

	Total       float64
	Unannotated float64
	Branching   map[string]float64
	Continuing  float64
}

// BranchingTotal sums the quantity lost to diverging taxa at the finer
// rank.
func (t *Transition) BranchingTotal() float64 {
	var total float64

	for _, q := range t.Branching {
		total += q
	}

	return total
}

// Report is the allocation of a record set's quantity along one target
// lineage.
type Report struct {
	// Target holds the classified, de-duplicated ranks of the lineage the
	// report follows.
	Target []RankName

	// Transitions runs from Root down to the finest classified rank, one
	// entry per adjacent pair of Target ranks plus the initial Root entry.
	Transitions []Transition
}

// RankName is a classified rank of the target lineage.
type RankName struct {
	Rank taxonomy.Rank
	Name string
}

// Allocation computes, for the given gap-filled target lineage names, how
// the records' quantity distributes across the lineage's ranks and where it
// drops off between them. Gap-fill duplicate slots are collapsed first (a
// slot only counts when classified and either last or different from the
// next slot), so a transition never pairs a rank with its own gap-filled
// copy. The first transition runs from the whole record set (Root) to the
// coarsest counted rank.
func Allocation(records []peptide.Record, target [taxonomy.NumRanks]string,
	quantity Quantity) (*Report, error) {
	ranks := validRanks(target)
	if len(ranks) == 0 {
		return nil, ErrEmptyLineage
	}

	report := &Report{Target: ranks}

	from := RankName{Rank: taxonomy.NoRank, Name: RootName}

	for _, to := range ranks {
		report.Transitions = append(report.Transitions,
			transition(records, target, from, to, quantity))

		from = to
	}

	return report, nil
}

// validRanks collapses a gap-filled lineage to the ranks worth reporting
// on: classified slots whose value is not just the gap-filled copy of the
// next finer slot.
func validRanks(target [taxonomy.NumRanks]string) []RankName {
	var ranks []RankName

	for i := 0; i < taxonomy.NumRanks; i++ {
		if target[i] == "" {
			continue
		}

		if i < taxonomy.NumRanks-1 && target[i] == target[i+1] {
			continue
		}

		ranks = append(ranks, RankName{Rank: taxonomy.Rank(i), Name: target[i]})
	}

	return ranks
}

func transition(records []peptide.Record, target [taxonomy.NumRanks]string,
	from, to RankName, quantity Quantity) Transition {
	tr := Transition{
		From:      from.Rank,
		To:        to.Rank,
		FromName:  from.Name,
		ToName:    to.Name,
		Branching: make(map[string]float64),
	}

	for i := range records {
		record := &records[i]

		if !atRank(record, from) {
			continue
		}

		q := quantity(record)
		tr.Total += q

		switch name := record.LineageNames[to.Rank]; name {
		case "":
			tr.Unannotated += q
		case to.Name:
			tr.Continuing += q
		default:
			tr.Branching[name] += q
		}
	}

	return tr
}

// atRank reports whether the record's lineage matches the target at the
// given rank; every record matches the Root pseudo-rank.
func atRank(record *peptide.Record, at RankName) bool {
	if at.Rank == taxonomy.NoRank {
		return true
	}

	return record.LineageNames[at.Rank] == at.Name
}

// CumulativeAnnotationDrop compounds the unannotated fractions of the
// report's transitions from the given start rank downward into one
// percentage, treating the per-transition losses as independent
// survivorship: 1 - prod(1 - loss). Starting at NoRank includes the Root
// transition. The second return is false when no transition starts at or
// below the start rank, or when a counted transition has no quantity at
// all.
func (r *Report) CumulativeAnnotationDrop(start taxonomy.Rank) (float64, bool) {
	survival := 1.0
	counted := false

	for i := range r.Transitions {
		tr := &r.Transitions[i]

		if tr.From < start {
			continue
		}

		if tr.Total == 0 {
			return 0, false
		}

		survival *= 1 - tr.Unannotated/tr.Total
		counted = true
	}

	if !counted {
		return 0, false
	}

	return (1 - survival) * 100, true
}
