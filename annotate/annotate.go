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

// package annotate fills the taxonomy and function fields of aggregated
// peptide records, resolving each record's protein accessions through an
// accession map and a reference tree. Records that do not resolve keep
// their explicit missing markers and are counted, never defaulted.

package annotate

import (
	"github.com/wtsi-hgi/metapep/funcmap"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxmap"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

// Stats counts how annotation went across a batch of records.
type Stats struct {
	Records           int
	TaxaResolved      int
	TaxaMissing       int
	FunctionsResolved int
	FunctionsMissing  int
}

// Taxonomy annotates records in place with the lowest common ancestor of
// their protein accessions, its name, and its gap-filled standard lineage.
// Accessions the lookup does not know are ignored; a record none of whose
// accessions resolve keeps its missing markers and counts as missing.
func Taxonomy(records []peptide.Record, lookup taxmap.Lookup, tree *taxonomy.Tree) (Stats, error) {
	var stats Stats

	stats.Records = len(records)

	for i := range records {
		id, err := taxmap.LCA(lookup, records[i].Accessions, tree)
		if err != nil {
			return stats, err
		}

		if id == taxonomy.None {
			stats.TaxaMissing++

			continue
		}

		setTaxon(&records[i], id, tree)

		stats.TaxaResolved++
	}

	return stats, nil
}

func setTaxon(record *peptide.Record, id taxonomy.TaxID, tree *taxonomy.Tree) {
	record.TaxonID = id
	record.TaxonName = tree.Name(id)
	record.LineageIDs = tree.Lineage(id).FillGaps()
	record.LineageNames = tree.LineageNames(record.LineageIDs)
}

// Function annotates records in place with the function annotation of their
// protein accessions. With combine set, the annotations of all matched
// accessions are joined per field; otherwise only fields every matched
// accession agrees on are kept. Records with no matched accession keep the
// zero Annotation and count as missing.
func Function(records []peptide.Record, fmap *funcmap.Map, combine bool) Stats {
	var stats Stats

	stats.Records = len(records)

	for i := range records {
		annotation, ok := fmap.ForAccessions(records[i].Accessions, combine)
		if !ok {
			stats.FunctionsMissing++

			continue
		}

		records[i].Function = annotation

		stats.FunctionsResolved++
	}

	return stats
}
