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

// package funcmap parses protein function annotation tables (eggNOG-mapper
// output or bare accession to KEGG KO mappings) and resolves the annotation
// for groups of protein accessions.

package funcmap

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxEvalue is the hit significance threshold applied when none is
// configured; eggNOG rows at or above it are discarded.
const DefaultMaxEvalue = 1e-6

const (
	commentPrefix = "##"
	headerPrefix  = "#"
	missingValue  = "-"
	koPrefix      = "ko:"
	listDelimiter = ";"
	maxLine       = 4 * 1024 * 1024
)

const (
	queryColumn  = "query"
	evalueColumn = "evalue"
	ogsColumn    = "eggNOG_OGs"
	cogColumn    = "COG_category"
	nameColumn   = "Preferred_name"
	ecColumn     = "EC"
	koColumn     = "KEGG_ko"
	cazyColumn   = "CAZy"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoHeader      = Error("annotation data has no header line")
	ErrMissingColumn = Error("annotation data lacks a required column")
	ErrBadEvalue     = Error("annotation row has a non-numeric evalue")
	ErrMalformedRow  = Error("annotation row has too few columns")
	ErrInvalidEvalue = Error("evalue threshold must be positive")
)

// Annotation holds the function annotation of a protein, or of a group of
// proteins after combination. String fields are empty when the source data
// had no value; EvalueOK reports whether Evalue is set.

type Annotation struct {
	Query    string
	Evalue   float64
	EvalueOK bool
	OGs      string
	COG      string
	Name     string
	EC       string
	KO       string
	CAZy     string
}

// strings returns pointers to the string fields of the annotation, in a
// fixed order shared by the combination and consensus loops.
func (a *Annotation) strings() [7]*string {
	return [7]*string{&a.Query, &a.OGs, &a.COG, &a.Name, &a.EC, &a.KO, &a.CAZy}
}

// Map is an in-memory protein accession to function annotation index.

type Map struct {
	entries []Annotation
	index   map[string]int
}

// NewEggnog reads eggNOG-mapper annotation output: "##" comment lines are
// skipped, the "#query ..." line names the columns, and rows with an evalue
// at or above maxEvalue are discarded. "-" values become missing, and "ko:"
// prefixes are stripped from KEGG KO terms.
//
// A maxEvalue of 0 means DefaultMaxEvalue. If pattern is non-nil, each query
// accession is reduced to the part it matches, and rows whose accession does
// not match are dropped.
func NewEggnog(r io.Reader, maxEvalue float64, pattern *regexp.Regexp) (*Map, error) {
	switch {
	case maxEvalue == 0:
		maxEvalue = DefaultMaxEvalue
	case maxEvalue < 0:
		return nil, ErrInvalidEvalue
	}

	m := &Map{index: make(map[string]int)}

	var cols *eggnogColumns

	if err := scanLines(r, func(line string) error {
		if strings.HasPrefix(line, commentPrefix) {
			return nil
		}

		if cols == nil {
			var err error

			cols, err = parseEggnogHeader(line)

			return err
		}

		return m.addEggnogRow(line, cols, maxEvalue, pattern)
	}); err != nil {
		return nil, err
	}

	if cols == nil {
		return nil, ErrNoHeader
	}

	return m, nil
}

// eggnogColumns holds the positions of the columns we keep from an
// eggNOG-mapper file.
type eggnogColumns struct {
	query, evalue, ogs, cog, name, ec, ko, cazy int
}

func parseEggnogHeader(line string) (*eggnogColumns, error) {
	fields := strings.Split(strings.TrimPrefix(line, headerPrefix), "\t")

	positions := make(map[string]int, len(fields))
	for i, field := range fields {
		positions[field] = i
	}

	cols := new(eggnogColumns)

	for dest, name := range map[*int]string{
		&cols.query:  queryColumn,
		&cols.evalue: evalueColumn,
		&cols.ogs:    ogsColumn,
		&cols.cog:    cogColumn,
		&cols.name:   nameColumn,
		&cols.ec:     ecColumn,
		&cols.ko:     koColumn,
		&cols.cazy:   cazyColumn,
	} {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}

		*dest = pos
	}

	return cols, nil
}

func (m *Map) addEggnogRow(line string, cols *eggnogColumns,
	maxEvalue float64, pattern *regexp.Regexp) error {
	fields := strings.Split(line, "\t")
	if len(fields) <= max(cols.query, cols.evalue, cols.ogs, cols.cog,
		cols.name, cols.ec, cols.ko, cols.cazy) {
		return ErrMalformedRow
	}

	evalue, err := strconv.ParseFloat(fields[cols.evalue], 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadEvalue, fields[cols.evalue])
	}

	if evalue >= maxEvalue {
		return nil
	}

	query := matchAccession(fields[cols.query], pattern)
	if query == "" {
		return nil
	}

	m.add(Annotation{
		Query:    query,
		Evalue:   evalue,
		EvalueOK: true,
		OGs:      cell(fields[cols.ogs]),
		COG:      cell(fields[cols.cog]),
		Name:     cell(fields[cols.name]),
		EC:       cell(fields[cols.ec]),
		KO:       strings.ReplaceAll(cell(fields[cols.ko]), koPrefix, ""),
		CAZy:     cell(fields[cols.cazy]),
	})

	return nil
}

// NewKO reads a headerless two column tab-separated accession to KEGG KO
// mapping, dropping rows where either value is missing. If pattern is
// non-nil it is applied to accessions as in NewEggnog.
func NewKO(r io.Reader, pattern *regexp.Regexp) (*Map, error) {
	m := &Map{index: make(map[string]int)}

	if err := scanLines(r, func(line string) error {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			return nil
		}

		query := matchAccession(cell(fields[0]), pattern)
		ko := cell(fields[1])

		if query == "" || ko == "" {
			return nil
		}

		m.add(Annotation{Query: query, KO: ko})

		return nil
	}); err != nil {
		return nil, err
	}

	return m, nil
}

func scanLines(r io.Reader, cb func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLine)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if err := cb(line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func matchAccession(accession string, pattern *regexp.Regexp) string {
	if pattern == nil {
		return accession
	}

	return pattern.FindString(accession)
}

// cell converts the eggNOG missing value marker to an empty string.
func cell(v string) string {
	if v == missingValue {
		return ""
	}

	return v
}

func (m *Map) add(a Annotation) {
	m.index[a.Query] = len(m.entries)
	m.entries = append(m.entries, a)
}

// Len returns the number of annotated accessions.
func (m *Map) Len() int {
	return len(m.entries)
}

// Annotation returns the annotation stored for the given accession.
func (m *Map) Annotation(accession string) (Annotation, bool) {
	i, ok := m.index[accession]
	if !ok {
		return Annotation{}, false
	}

	return m.entries[i], true
}

// ForAccessions resolves the annotation for a group of protein accessions,
// eg. all the proteins a peptide matched. Accessions without annotation are
// ignored; if none have any, ok is false.
//
// With combine set, the values of all annotated accessions are joined with
// ";", missing values appearing as "-", and the evalue becomes the best
// (lowest) of the group. Without it, each field keeps its value only when
// every annotated accession agrees, missing values included.
func (m *Map) ForAccessions(accessions []string, combine bool) (Annotation, bool) {
	var matches []Annotation

	for _, accession := range accessions {
		if a, ok := m.Annotation(accession); ok {
			matches = append(matches, a)
		}
	}

	switch {
	case len(matches) == 0:
		return Annotation{}, false
	case len(matches) == 1:
		return matches[0], true
	case combine:
		return combineAnnotations(matches), true
	default:
		return consensusAnnotations(matches), true
	}
}

func combineAnnotations(matches []Annotation) Annotation {
	var combined Annotation

	fields := combined.strings()

	for n := range fields {
		values := make([]string, len(matches))

		for i := range matches {
			if v := *matches[i].strings()[n]; v != "" {
				values[i] = v
			} else {
				values[i] = missingValue
			}
		}

		*fields[n] = strings.Join(values, listDelimiter)
	}

	for _, match := range matches {
		if match.EvalueOK && (!combined.EvalueOK || match.Evalue < combined.Evalue) {
			combined.Evalue = match.Evalue
			combined.EvalueOK = true
		}
	}

	return combined
}

func consensusAnnotations(matches []Annotation) Annotation {
	consensus := matches[0]

	fields := consensus.strings()

	for n := range fields {
		for i := 1; i < len(matches); i++ {
			if *matches[i].strings()[n] != *fields[n] {
				*fields[n] = ""

				break
			}
		}
	}

	for i := 1; i < len(matches); i++ {
		if matches[i].EvalueOK != consensus.EvalueOK ||
			matches[i].Evalue != consensus.Evalue {
			consensus.Evalue = 0
			consensus.EvalueOK = false

			break
		}
	}

	return consensus
}
