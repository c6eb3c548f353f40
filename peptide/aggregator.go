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

// Reduction is an independent aggregation applied to one field's values
// across a peptide's rows. Fields without a configured reduction keep the
// first seen value.
type Reduction uint8

const (
	First Reduction = iota
	Sum
	Max
	Mean
	Mode
	numReductions
)

// CountField says which Record count receives a peptide's group size.
type CountField uint8

const (
	CountPSMs CountField = iota
	CountMatches
)

// Profile configures how an Aggregator collapses a peptide's rows in to one
// Record: per-field independent reductions, linked selections (every field
// in a group copied from the single row attaining the maximum of the group's
// reference field), and the count destination.
type Profile struct {
	Reductions map[Field]Reduction
	Linked     map[Field][]Field
	Count      CountField
}

// DBSearchProfile is the aggregation used for db search identifications:
// the most frequent peptide string, summed area, maximum confidence, and
// the retention time, m/z, mass, ppm error, scan and source file of the
// highest-confidence row.
func DBSearchProfile() Profile {
	return Profile{
		Reductions: map[Field]Reduction{
			FieldPeptide:    Mode,
			FieldArea:       Sum,
			FieldConfidence: Max,
		},
		Linked: map[Field][]Field{
			FieldConfidence: {
				FieldRT, FieldMZ, FieldMass, FieldPPM, FieldScan,
				FieldSourceFile,
			},
		},
		Count: CountPSMs,
	}
}

// DeNovoProfile is the aggregation used for de novo identifications: mass
// measurements are averaged instead, and the retention time and scan follow
// the highest-area row.
func DeNovoProfile() Profile {
	return Profile{
		Reductions: map[Field]Reduction{
			FieldPeptide:    Mode,
			FieldArea:       Sum,
			FieldConfidence: Max,
			FieldMZ:         Mean,
			FieldMass:       Mean,
			FieldPPM:        Mean,
		},
		Linked: map[Field][]Field{
			FieldArea: {FieldRT, FieldScan},
		},
		Count: CountMatches,
	}
}

// Aggregator groups rows by peptide sequence, applying a Profile to produce
// one Record per distinct sequence.
type Aggregator struct {
	profile Profile
	order   []string
	groups  map[string]*group
}

// NewAggregator returns an Aggregator for the given profile, or an error if
// the profile names unknown fields, puts a field under two policies, pairs
// a reduction with a field of the wrong type, or uses a non-numeric linked
// selection reference.
func NewAggregator(profile Profile) (*Aggregator, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	return &Aggregator{
		profile: profile,
		groups:  make(map[string]*group),
	}, nil
}

func validateProfile(profile Profile) error {
	if profile.Count > CountMatches {
		return ErrBadCount
	}

	if err := validateReductions(profile.Reductions); err != nil {
		return err
	}

	return validateLinked(profile.Linked, profile.Reductions)
}

func validateReductions(reductions map[Field]Reduction) error {
	for field, reduction := range reductions {
		if field >= numFields {
			return ErrUnknownField
		}

		switch {
		case reduction >= numReductions:
			return ErrBadReduction
		case reduction == First:
		case reduction == Mode && field.kind() != kindString:
			return ErrBadReduction
		case reduction != Mode && !field.numeric():
			return ErrBadReduction
		}
	}

	return nil
}

func validateLinked(linked map[Field][]Field, reductions map[Field]Reduction) error {
	targeted := make(map[Field]bool)

	for reference, targets := range linked {
		if reference >= numFields {
			return ErrUnknownField
		}

		if !reference.numeric() {
			return ErrBadReference
		}

		for _, field := range targets {
			if field >= numFields {
				return ErrUnknownField
			}

			if _, reduced := reductions[field]; reduced || targeted[field] {
				return ErrFieldConflict
			}

			targeted[field] = true
		}
	}

	return nil
}

// group accumulates the rows of one peptide sequence: a running aggregate
// row seeded from the first row, reduction accumulators, and the best row
// so far per linked selection reference.
type group struct {
	agg   Row
	count int
	sums  map[Field]float64
	modes map[Field]map[string]int
	best  map[Field]Row
}

func newGroup(row Row) *group {
	return &group{
		agg:   row,
		sums:  make(map[Field]float64),
		modes: make(map[Field]map[string]int),
		best:  make(map[Field]Row),
	}
}

// Add aggregates another row. Rows without a sequence are structural
// failures, not aggregatable data.
func (a *Aggregator) Add(row Row) error {
	if row.Sequence == "" {
		return ErrNoSequence
	}

	g, ok := a.groups[row.Sequence]
	if !ok {
		g = newGroup(row)
		a.groups[row.Sequence] = g
		a.order = append(a.order, row.Sequence)
	}

	g.update(row, a.profile)

	return nil
}

func (g *group) update(row Row, profile Profile) {
	g.count++

	for field, reduction := range profile.Reductions {
		switch reduction {
		case Sum, Mean:
			g.sums[field] += row.float(field)
		case Max:
			if row.float(field) > g.agg.float(field) {
				g.agg.setFloat(field, row.float(field))
			}
		case Mode:
			counts, ok := g.modes[field]
			if !ok {
				counts = make(map[string]int)
				g.modes[field] = counts
			}

			counts[row.str(field)]++
		}
	}

	for reference := range profile.Linked {
		current, ok := g.best[reference]
		if !ok || row.float(reference) > current.float(reference) {
			g.best[reference] = row
		}
	}
}

// Len returns the number of distinct peptide sequences seen so far.
func (a *Aggregator) Len() int {
	return len(a.groups)
}

// Records returns one Record per distinct sequence, in first-seen order.
func (a *Aggregator) Records() []Record {
	records := make([]Record, len(a.order))

	for i, sequence := range a.order {
		records[i] = a.groups[sequence].record(a.profile)
	}

	return records
}

func (g *group) record(profile Profile) Record {
	agg := g.agg

	for field, reduction := range profile.Reductions {
		switch reduction {
		case Sum:
			agg.setFloat(field, g.sums[field])
		case Mean:
			agg.setFloat(field, g.sums[field]/float64(g.count))
		case Mode:
			agg.setStr(field, mode(g.modes[field]))
		}
	}

	for reference, targets := range profile.Linked {
		for _, field := range targets {
			copyField(&agg, g.best[reference], field)
		}
	}

	record := rowRecord(agg)

	switch profile.Count {
	case CountPSMs:
		record.PSMCount = g.count
	case CountMatches:
		record.DeNovoMatchCount = g.count
	}

	return record
}

// mode returns the most frequent value; ties go to the smallest value, as
// pandas' Series.mode orders them.
func mode(counts map[string]int) string {
	var (
		value string
		n     int
	)

	for v, c := range counts {
		if c > n || (c == n && v < value) {
			value, n = v, c
		}
	}

	return value
}

// MergeDeNovo outer-joins db search records with de novo records (from a
// DeNovoProfile aggregation) on peptide sequence. Matching db search
// records gain the de novo fields; de novo only sequences append records
// whose peptide string comes from the de novo peptide. Input order is
// preserved, db search records first.
func MergeDeNovo(dbRecords, deNovoRecords []Record) []Record {
	index := make(map[string]int, len(deNovoRecords))
	for i, record := range deNovoRecords {
		index[record.Sequence] = i
	}

	merged := make([]Record, 0, len(dbRecords)+len(deNovoRecords))
	used := make([]bool, len(deNovoRecords))

	for _, record := range dbRecords {
		if i, ok := index[record.Sequence]; ok {
			fillDeNovo(&record, deNovoRecords[i])

			used[i] = true
		}

		merged = append(merged, record)
	}

	for i, deNovo := range deNovoRecords {
		if used[i] {
			continue
		}

		record := Record{Peptide: deNovo.Peptide, Sequence: deNovo.Sequence}

		fillDeNovo(&record, deNovo)

		merged = append(merged, record)
	}

	return merged
}

func fillDeNovo(record *Record, deNovo Record) {
	record.DeNovoConfidence = deNovo.Confidence
	record.DeNovoArea = deNovo.Area
	record.DeNovoMatchCount = deNovo.DeNovoMatchCount
	record.DeNovoScan = deNovo.Scan
	record.DeNovoSourceFile = deNovo.SourceFile
}
