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

// UnknownPolicy says how LCA treats input ids that are not in the tree.
type UnknownPolicy uint8

const (
	// UnknownIgnore drops unknown ids and resolves the rest.
	UnknownIgnore UnknownPolicy = iota

	// UnknownError fails the whole query when any id is unknown.
	UnknownError

	// UnknownRoot resolves to the tree root when any id is unknown.
	UnknownRoot

	// UnknownNone resolves to None when any id is unknown.
	UnknownNone
)

var unknownPolicyNames = [...]string{"ignore", "error", "root", "none"}

// ParseUnknownPolicy converts a policy name ("ignore", "error", "root" or
// "none") to an UnknownPolicy.
func ParseUnknownPolicy(name string) (UnknownPolicy, error) {
	for i, pn := range unknownPolicyNames {
		if name == pn {
			return UnknownPolicy(i), nil
		}
	}

	return UnknownIgnore, ErrInvalidPolicy
}

// String returns the name of the policy.
func (p UnknownPolicy) String() string {
	if !p.valid() {
		return "invalid"
	}

	return unknownPolicyNames[p]
}

func (p UnknownPolicy) valid() bool {
	return p <= UnknownNone
}

// AbsentRankPolicy says how AncestorAtRank treats a lineage with no
// classification at the requested rank.
type AbsentRankPolicy uint8

const (
	// AbsentNone returns None for an unclassified rank.
	AbsentNone AbsentRankPolicy = iota

	// AbsentFiner walks towards Species until a classified rank is found,
	// returning None if even Species is unclassified.
	AbsentFiner

	// AbsentCoarser walks towards Domain until a classified rank is found,
	// falling back to the tree root if the whole lineage is unclassified.
	AbsentCoarser
)

var absentRankPolicyNames = [...]string{"none", "finer", "coarser"}

// ParseAbsentRankPolicy converts a policy name ("none", "finer" or
// "coarser") to an AbsentRankPolicy.
func ParseAbsentRankPolicy(name string) (AbsentRankPolicy, error) {
	for i, pn := range absentRankPolicyNames {
		if name == pn {
			return AbsentRankPolicy(i), nil
		}
	}

	return AbsentNone, ErrInvalidPolicy
}

// String returns the name of the policy.
func (p AbsentRankPolicy) String() string {
	if !p.valid() {
		return "invalid"
	}

	return absentRankPolicyNames[p]
}

func (p AbsentRankPolicy) valid() bool {
	return p <= AbsentCoarser
}

// LCA resolves a set of taxon ids to their lowest common ancestor. Missing
// (None) ids are dropped first, then ids not in the tree are handled per the
// given policy. An empty remainder gives None; a single survivor is its own
// answer; otherwise the full ancestral paths are compared rank by rank.
func (t *Tree) LCA(ids []TaxID, policy UnknownPolicy) (TaxID, error) {
	if !policy.valid() {
		return None, ErrInvalidPolicy
	}

	known := make([]TaxID, 0, len(ids))
	unknownSeen := false

	for _, id := range ids {
		switch {
		case id == None:
		case !t.Contains(id):
			unknownSeen = true
		default:
			known = append(known, id)
		}
	}

	if unknownSeen {
		switch policy {
		case UnknownError:
			return None, ErrUnknownInLCA
		case UnknownRoot:
			return t.root, nil
		case UnknownNone:
			return None, nil
		}
	}

	switch len(known) {
	case 0:
		return None, nil
	case 1:
		return known[0], nil
	}

	paths := make([][]TaxID, len(known))
	for i, id := range known {
		paths[i] = t.Ancestors(id)
	}

	return t.PathsLCA(paths), nil
}

// PathsLCA compares root-first ancestral paths position by position,
// keeping the deepest position at which every path agrees. Positions where
// any path holds None are skipped rather than ending the walk, so gapped
// standard lineages may also be compared. No paths at all gives None.
func (t *Tree) PathsLCA(paths [][]TaxID) TaxID {
	if len(paths) == 0 {
		return None
	}

	minLen := len(paths[0])

	for _, path := range paths[1:] {
		if len(path) < minLen {
			minLen = len(path)
		}
	}

	lca := t.root

	for i := 0; i < minLen; i++ {
		if v, ok := agreeAt(paths, i); ok {
			lca = v
		}
	}

	return lca
}

// agreeAt reports whether every path holds the same non-None id at position
// i, and if so which.
func agreeAt(paths [][]TaxID, i int) (TaxID, bool) {
	v := paths[0][i]
	if v == None {
		return None, false
	}

	for _, path := range paths[1:] {
		switch path[i] {
		case None:
			return None, false
		case v:
		default:
			v = None
		}
	}

	return v, v != None
}

// LineageLCA resolves standard 7-rank lineages to the id of the deepest
// rank at which all agree, skipping ranks where any lineage is
// unclassified.
func (t *Tree) LineageLCA(lineages []Lineage) TaxID {
	paths := make([][]TaxID, len(lineages))
	for i, lineage := range lineages {
		paths[i] = lineage[:]
	}

	return t.PathsLCA(paths)
}

// AncestorAtRank returns the taxon's classification at the given standard
// rank, with the policy deciding what an unclassified rank resolves to.
// Unknown ids and None resolve to None.
func (t *Tree) AncestorAtRank(id TaxID, rank Rank, policy AbsentRankPolicy) (TaxID, error) {
	if !rank.IsStandard() {
		return None, ErrInvalidRank
	}

	if !policy.valid() {
		return None, ErrInvalidPolicy
	}

	if !t.Contains(id) {
		return None, nil
	}

	lineage := t.Lineage(id)

	switch policy {
	case AbsentFiner:
		for rank < Species && lineage[rank] == None {
			rank++
		}
	case AbsentCoarser:
		for rank > Domain && lineage[rank] == None {
			rank--
		}

		if lineage[rank] == None {
			return t.root, nil
		}
	}

	return lineage[rank], nil
}
