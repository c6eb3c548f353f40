/*******************************************************************************
 * Copyright (c) 2025, 2026 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
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

package gtdb

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

const (
	accessionColumn = "accession"
	ncbiTaxidColumn = "ncbi_taxid"

	// metadata rows carry over a hundred columns, some of them long free
	// text, so the default scanner limit is not enough.
	maxMetadataLine = 4 * 1024 * 1024
)

// NCBIMap translates GTDB genome accessions to NCBI taxon ids, built from
// the ncbi_taxid column of GTDB metadata releases.
type NCBIMap struct {
	taxa map[string]taxonomy.TaxID
}

// LoadNCBIMap reads GTDB metadata TSVs (bac120_metadata.tsv and
// ar53_metadata.tsv, optionally gzipped), keeping each genome's NCBI taxon
// id.
func LoadNCBIMap(paths ...string) (*NCBIMap, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	m := &NCBIMap{taxa: make(map[string]taxonomy.TaxID)}

	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *NCBIMap) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		if r, err = pgzip.NewReader(f); err != nil {
			return err
		}
	}

	return m.parse(r)
}

func (m *NCBIMap) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxMetadataLine)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}

		return ErrMalformedMetadata
	}

	accCol, taxidCol, err := metadataColumns(scanner.Text())
	if err != nil {
		return err
	}

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) <= accCol || len(fields) <= taxidCol {
			return ErrMalformedMetadata
		}

		m.taxa[trimAccession(fields[accCol])] = taxonomy.TaxID(fields[taxidCol])
	}

	return scanner.Err()
}

func metadataColumns(header string) (int, int, error) {
	accCol, taxidCol := -1, -1

	for i, name := range strings.Split(header, "\t") {
		switch name {
		case accessionColumn:
			accCol = i
		case ncbiTaxidColumn:
			taxidCol = i
		}
	}

	if accCol < 0 || taxidCol < 0 {
		return 0, 0, ErrMissingMetadataCol
	}

	return accCol, taxidCol, nil
}

// TaxID returns the NCBI taxon id recorded for the genome accession, or
// None for accessions outside the release.
func (m *NCBIMap) TaxID(accession string) taxonomy.TaxID {
	return m.taxa[trimAccession(accession)]
}

// Len returns the number of genomes in the map.
func (m *NCBIMap) Len() int {
	return len(m.taxa)
}
