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
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

const (
	ErrBadHeader   = Error("table data does not start with a metapep header")
	ErrBadMetaLine = Error("malformed table metadata line")
	ErrBadColumns  = Error("table data has unexpected columns")
	ErrBadCell     = Error("table row has a malformed cell")
)

const (
	magicLine    = "#metapep\t1"
	metaPrefix   = "#"
	tableIDField = "table_id"
	gzipSuffix   = ".gz"
	maxTableLine = 4 * 1024 * 1024
)

// tableColumns is the on-disk column order. Missing values are written as
// empty cells, so every row has the full column count.
var tableColumns = buildColumns()

func buildColumns() []string {
	cols := []string{
		"Sequence", "Peptide",
		"PSM Count", "Confidence", "Area", "m/z", "Mass", "ppm", "RT",
		"Scan", "Charge", "Length", "Feature Id", "Accession", "PTM",
		"Source File",
		"De Novo Confidence", "De Novo Area", "De Novo Match Count",
		"De Novo Scan", "De Novo Source File",
		"Taxonomy Id", "Taxonomy Name",
	}

	for rank := taxonomy.Domain; rank <= taxonomy.Species; rank++ {
		cols = append(cols, rankColumn(rank, "Id"))
	}

	for rank := taxonomy.Domain; rank <= taxonomy.Species; rank++ {
		cols = append(cols, rankColumn(rank, "Name"))
	}

	return append(cols,
		"Function Query", "Evalue", "eggNOG_OGs", "COG_category",
		"Preferred_name", "EC", "KEGG_ko", "CAZy",
		"Sample Name",
	)
}

// rankColumn turns a rank and a suffix into a column name, eg. "Domain Id".
func rankColumn(rank taxonomy.Rank, suffix string) string {
	name := rank.String()

	return strings.ToUpper(name[:1]) + name[1:] + " " + suffix
}

// Write serializes the table as a metadata block of #key\tvalue lines
// followed by a TSV of its records. Unset metadata fields are omitted and
// missing record values become empty cells, so Read restores the table
// exactly.
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	writeMetaBlock(bw, t)

	bw.WriteString(strings.Join(tableColumns, "\t")) //nolint:errcheck
	bw.WriteByte('\n')                               //nolint:errcheck

	for i := range t.Records {
		bw.WriteString(strings.Join(recordCells(&t.Records[i]), "\t")) //nolint:errcheck
		bw.WriteByte('\n')                                             //nolint:errcheck
	}

	return bw.Flush()
}

func writeMetaBlock(bw *bufio.Writer, t *Table) {
	bw.WriteString(magicLine) //nolint:errcheck
	bw.WriteByte('\n')        //nolint:errcheck

	writeMetaLine(bw, tableIDField, t.ID.String())

	fields := t.Meta.fields()

	for i, name := range metadataFields {
		if *fields[i] != "" {
			writeMetaLine(bw, name, *fields[i])
		}
	}
}

func writeMetaLine(bw *bufio.Writer, key, value string) {
	bw.WriteString(metaPrefix) //nolint:errcheck
	bw.WriteString(key)        //nolint:errcheck
	bw.WriteByte('\t')         //nolint:errcheck
	bw.WriteString(value)      //nolint:errcheck
	bw.WriteByte('\n')         //nolint:errcheck
}

// WriteFile writes the table to the given path, gzip compressing it when
// the path ends in .gz.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f

	var gz *pgzip.Writer

	if strings.HasSuffix(path, gzipSuffix) {
		gz = pgzip.NewWriter(f)
		w = gz
	}

	if err := Write(w, t); err != nil {
		f.Close()

		return err
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()

			return err
		}
	}

	return f.Close()
}

// cellWriter accumulates the cells of one row, writing empty cells for
// missing values.
type cellWriter struct {
	cells []string
}

func (c *cellWriter) str(v string) { c.cells = append(c.cells, v) }

func (c *cellWriter) float(v float64, present bool) {
	if !present {
		c.str("")

		return
	}

	c.str(strconv.FormatFloat(v, 'g', -1, 64))
}

func (c *cellWriter) int(v int64, present bool) {
	if !present {
		c.str("")

		return
	}

	c.str(strconv.FormatInt(v, 10))
}

func recordCells(r *peptide.Record) []string {
	c := &cellWriter{cells: make([]string, 0, len(tableColumns))}

	c.str(r.Sequence)
	c.str(r.Peptide)

	dbSearch := r.PSMCount > 0

	c.int(int64(r.PSMCount), dbSearch)
	c.float(r.Confidence, dbSearch)
	c.float(r.Area, dbSearch)
	c.float(r.MZ, dbSearch)
	c.float(r.Mass, dbSearch)
	c.float(r.PPM, dbSearch)
	c.float(r.RT, dbSearch)
	c.int(r.Scan, dbSearch)
	c.int(int64(r.Charge), dbSearch)
	c.int(int64(r.Length), dbSearch)
	c.str(r.Feature)
	c.str(strings.Join(r.Accessions, peptide.AccessionDelimiter))
	c.str(r.PTM)
	c.str(r.SourceFile)

	deNovo := r.DeNovoMatchCount > 0

	c.float(r.DeNovoConfidence, deNovo)
	c.float(r.DeNovoArea, deNovo)
	c.int(int64(r.DeNovoMatchCount), deNovo)
	c.int(r.DeNovoScan, deNovo)
	c.str(r.DeNovoSourceFile)

	c.str(string(r.TaxonID))
	c.str(r.TaxonName)

	for _, id := range r.LineageIDs {
		c.str(string(id))
	}

	for _, name := range r.LineageNames {
		c.str(name)
	}

	c.str(r.Function.Query)
	c.float(r.Function.Evalue, r.Function.EvalueOK)
	c.str(r.Function.OGs)
	c.str(r.Function.COG)
	c.str(r.Function.Name)
	c.str(r.Function.EC)
	c.str(r.Function.KO)
	c.str(r.Function.CAZy)

	c.str(r.SampleName)

	return c.cells
}

// Read restores a table written by Write.
func Read(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxTableLine)

	table := &Table{}

	if err := readMetaBlock(scanner, table); err != nil {
		return nil, err
	}

	for scanner.Scan() {
		record, err := parseRecord(scanner.Text())
		if err != nil {
			return nil, err
		}

		table.Records = append(table.Records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// ReadFile reads a table from the given path, decompressing it when the
// path ends in .gz.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, gzipSuffix) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, err
		}

		defer gz.Close()

		r = gz
	}

	return Read(r)
}

// readMetaBlock consumes the #-prefixed metadata lines and the column
// header, leaving the scanner at the first record row.
func readMetaBlock(scanner *bufio.Scanner, table *Table) error {
	if !scanner.Scan() || scanner.Text() != magicLine {
		return ErrBadHeader
	}

	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, metaPrefix) {
			if line != strings.Join(tableColumns, "\t") {
				return ErrBadColumns
			}

			return nil
		}

		if err := parseMetaLine(line, table); err != nil {
			return err
		}
	}

	return ErrBadColumns
}

func parseMetaLine(line string, table *Table) error {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, metaPrefix), "\t")
	if !ok {
		return ErrBadMetaLine
	}

	if key == tableIDField {
		id, err := uuid.Parse(value)
		if err != nil {
			return ErrBadMetaLine
		}

		table.ID = id

		return nil
	}

	fields := table.Meta.fields()

	for i, name := range metadataFields {
		if key == name {
			*fields[i] = value

			return nil
		}
	}

	return ErrBadMetaLine
}

// cellReader walks the cells of one row, converting empty cells back to
// missing values.
type cellReader struct {
	cells []string
	err   error
}

func (c *cellReader) str() string {
	v := c.cells[0]
	c.cells = c.cells[1:]

	return v
}

func (c *cellReader) float() float64 {
	cell := c.str()
	if cell == "" {
		return 0
	}

	v, err := strconv.ParseFloat(cell, 64)
	if err != nil && c.err == nil {
		c.err = ErrBadCell
	}

	return v
}

func (c *cellReader) int() int64 {
	cell := c.str()
	if cell == "" {
		return 0
	}

	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil && c.err == nil {
		c.err = ErrBadCell
	}

	return v
}

func parseRecord(line string) (peptide.Record, error) {
	cells := strings.Split(line, "\t")
	if len(cells) != len(tableColumns) {
		return peptide.Record{}, ErrBadColumns
	}

	c := &cellReader{cells: cells}
	r := peptide.Record{}

	r.Sequence = c.str()
	r.Peptide = c.str()
	r.PSMCount = int(c.int())
	r.Confidence = c.float()
	r.Area = c.float()
	r.MZ = c.float()
	r.Mass = c.float()
	r.PPM = c.float()
	r.RT = c.float()
	r.Scan = c.int()
	r.Charge = int(c.int())
	r.Length = int(c.int())
	r.Feature = c.str()
	r.Accessions = splitAccessions(c.str())
	r.PTM = c.str()
	r.SourceFile = c.str()

	r.DeNovoConfidence = c.float()
	r.DeNovoArea = c.float()
	r.DeNovoMatchCount = int(c.int())
	r.DeNovoScan = c.int()
	r.DeNovoSourceFile = c.str()

	r.TaxonID = taxonomy.TaxID(c.str())
	r.TaxonName = c.str()

	for i := range r.LineageIDs {
		r.LineageIDs[i] = taxonomy.TaxID(c.str())
	}

	for i := range r.LineageNames {
		r.LineageNames[i] = c.str()
	}

	r.Function.Query = c.str()

	evalueCell := c.cells[0]
	r.Function.Evalue = c.float()
	r.Function.EvalueOK = evalueCell != ""

	r.Function.OGs = c.str()
	r.Function.COG = c.str()
	r.Function.Name = c.str()
	r.Function.EC = c.str()
	r.Function.KO = c.str()
	r.Function.CAZy = c.str()

	r.SampleName = c.str()

	return r, c.err
}

func splitAccessions(cell string) []string {
	if cell == "" {
		return nil
	}

	return strings.Split(cell, peptide.AccessionDelimiter)
}
