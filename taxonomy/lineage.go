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

package taxonomy

// Lineage is a taxon's classification at the 7 standard ranks, indexed by
// Rank from Domain to Species. Slots the taxon is not classified at hold
// None; the zero value is the all-missing lineage.
type Lineage [NumRanks]TaxID

// At returns the taxon at the given rank, or None if the rank is not a
// standard rank.
func (l Lineage) At(rank Rank) TaxID {
	if !rank.IsStandard() {
		return None
	}

	return l[rank]
}

// IsEmpty returns true if no rank of the lineage is classified.
func (l Lineage) IsEmpty() bool {
	return l == Lineage{}
}

// FillGaps returns a copy of the lineage in which every missing rank that
// has a classified rank somewhere below it takes that finer taxon's id.
// Ranks below the finest classification stay None, so a lineage classified
// to genus keeps an empty species slot. The operation is idempotent.
func (l Lineage) FillGaps() Lineage {
	carry := None

	for i := NumRanks - 1; i >= 0; i-- {
		if l[i] != None {
			carry = l[i]
		} else {
			l[i] = carry
		}
	}

	return l
}

// Lineage returns the taxon's classification at the 7 standard ranks,
// derived from its full ancestral path (including itself): each path member
// of standard rank fills its slot, and taxa of non-standard rank are
// skipped. Unknown ids and None give the all-missing lineage. Results are
// cached on the tree, which remains safe for concurrent use.
func (t *Tree) Lineage(id TaxID) Lineage {
	if id == None {
		return Lineage{}
	}

	t.mu.RLock()
	lineage, ok := t.lineages[id]
	t.mu.RUnlock()

	if ok {
		return lineage
	}

	node, ok := t.nodes[id]
	if !ok {
		return Lineage{}
	}

	for _, pathID := range node.Ancestors {
		t.placeAtRank(&lineage, pathID)
	}

	t.placeAtRank(&lineage, id)

	t.mu.Lock()
	t.lineages[id] = lineage
	t.mu.Unlock()

	return lineage
}

func (t *Tree) placeAtRank(lineage *Lineage, id TaxID) {
	if node, ok := t.nodes[id]; ok && node.Rank.IsStandard() {
		lineage[node.Rank] = id
	}
}

// LineageNames maps each classified rank of a lineage to its taxon name,
// leaving "" where the lineage has no classification or the id is unknown.
func (t *Tree) LineageNames(lineage Lineage) [NumRanks]string {
	var names [NumRanks]string

	for i, id := range lineage {
		if id != None {
			names[i] = t.Name(id)
		}
	}

	return names
}
