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

// Rank is one of the 7 standard taxonomic ranks, ordered from coarsest
// (Domain) to finest (Species), plus NoRank for taxa that sit outside the
// standard hierarchy.
type Rank int8

const (
	NoRank Rank = iota - 1
	Domain
	Phylum
	Class
	Order
	Family
	Genus
	Species
)

// NumRanks is the number of standard ranks, and thus the length of a Lineage.
const NumRanks = 7

var rankNames = [NumRanks]string{
	"domain",
	"phylum",
	"class",
	"order",
	"family",
	"genus",
	"species",
}

// String returns the lower-case name of the rank, eg. "phylum", or "no rank"
// for NoRank.
func (r Rank) String() string {
	if !r.IsStandard() {
		return "no rank"
	}

	return rankNames[r]
}

// IsStandard returns true if the rank is one of the 7 standard ranks.
func (r Rank) IsStandard() bool {
	return r >= Domain && r <= Species
}

// ParseRank converts a rank name to a Rank. Matching is exact on the
// lower-case names "domain" through "species", with "superkingdom" accepted
// as an alias for Domain, since NCBI dumps predating the 2024 rank rename
// still use it. Any other value maps to NoRank.
func ParseRank(name string) Rank {
	if name == "superkingdom" {
		return Domain
	}

	for i, rn := range rankNames {
		if name == rn {
			return Rank(i)
		}
	}

	return NoRank
}

// ParseStandardRank is ParseRank for contexts where only a standard rank
// will do; names that do not name one error instead of mapping to NoRank.
func ParseStandardRank(name string) (Rank, error) {
	if r := ParseRank(name); r.IsStandard() {
		return r, nil
	}

	return NoRank, ErrUnknownRankName
}
