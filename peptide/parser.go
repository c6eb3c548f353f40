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

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

const maxRowLine = 1024 * 1024

// requiredColumns are the columns every normalized row file must carry.
// "Feature Id" and "Accession" are optional: de novo identifications have
// neither.
var requiredColumns = []Field{
	FieldPeptide, FieldRT, FieldScan, FieldMZ, FieldCharge, FieldPPM,
	FieldLength, FieldConfidence, FieldArea, FieldMass, FieldPTM,
	FieldSourceFile,
}

const sequenceColumn = "Sequence"

// RowParser parses normalized per-spectrum row files: a tab separated
// header naming the common columns, then one row per peptide spectrum
// match.
const (
	colSkip     = -1
	colSequence = -2
)

type RowParser struct {
	scanner *bufio.Scanner
	cols    []int8
	Row     Row
	error   error
}

// NewRowParser is used to create a new RowParser, given uncompressed row
// data.
func NewRowParser(r io.Reader) *RowParser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxRowLine)

	return &RowParser{scanner: scanner}
}

// Scan reads the next row, which will then be available through the Row
// property. It returns false when the scan stops, either by reaching the
// end of the input or an error. After Scan returns false, the Err method
// will return any error that occurred during scanning.
func (p *RowParser) Scan() bool {
	for p.scanner.Scan() {
		line := p.scanner.Text()
		if line == "" {
			continue
		}

		if p.cols == nil {
			if p.error = p.parseHeader(line); p.error != nil {
				return false
			}

			continue
		}

		return p.parseRow(line)
	}

	if p.cols == nil && p.error == nil {
		p.error = ErrNoHeader
	}

	return false
}

func (p *RowParser) parseHeader(line string) error {
	names := strings.Split(line, "\t")
	cols := make([]int8, len(names))
	seen := make(map[string]bool, len(names))

	for i, name := range names {
		cols[i] = columnField(name)
		seen[name] = true
	}

	if !seen[sequenceColumn] {
		return fmt.Errorf("%w: %s", ErrMissingColumn, sequenceColumn)
	}

	for _, field := range requiredColumns {
		if !seen[field.String()] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, field)
		}
	}

	p.cols = cols

	return nil
}

func columnField(name string) int8 {
	if name == sequenceColumn {
		return colSequence
	}

	for f := FieldPeptide; f < numFields; f++ {
		if name == f.String() {
			return int8(f)
		}
	}

	return colSkip
}

func (p *RowParser) parseRow(line string) bool {
	values := strings.Split(line, "\t")
	if len(values) < len(p.cols) {
		p.error = ErrTooFewColumns

		return false
	}

	p.Row = Row{}

	for i, col := range p.cols {
		switch col {
		case colSkip:
		case colSequence:
			p.Row.Sequence = values[i]
		default:
			if !p.setField(Field(col), values[i]) {
				return false
			}
		}
	}

	return true
}

func (p *RowParser) setField(f Field, value string) bool {
	switch f.kind() {
	case kindString:
		p.Row.setStr(f, value)
	case kindList:
		if value != "" {
			p.Row.Accessions = strings.Split(value, AccessionDelimiter)
		}
	default:
		if value == "" {
			return true
		}

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			p.error = fmt.Errorf("%w: %s", ErrBadNumber, f)

			return false
		}

		p.Row.setFloat(f, v)
	}

	return true
}

// Err returns the first non-EOF error that was encountered, available after
// Scan() returns false.
func (p *RowParser) Err() error {
	if p.error != nil {
		return p.error
	}

	return p.scanner.Err()
}

// ParseFile streams the rows of the given normalized row file, which may be
// gzip compressed, to the given callback. Returning an error from the
// callback stops the parse and returns that error.
func ParseFile(path string, cb func(Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return err
		}

		defer gz.Close()

		r = gz
	}

	p := NewRowParser(r)

	for p.Scan() {
		if err := cb(p.Row); err != nil {
			return err
		}
	}

	return p.Err()
}
