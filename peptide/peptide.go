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

// package peptide turns raw per-spectrum peptide identifications in to one
// aggregated record per peptide sequence, with per-field aggregation
// policies, and merges db search and de novo aggregations for a sample.

package peptide

import (
	"github.com/wtsi-hgi/metapep/funcmap"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

// AccessionDelimiter joins and splits protein accession lists in tabular
// representations of rows and records.
const AccessionDelimiter = ";"

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownField  = Error("aggregation profile names an unknown field")
	ErrFieldConflict = Error("aggregation profile puts a field under two policies")
	ErrBadReduction  = Error("aggregation reduction does not suit the field")
	ErrBadReference  = Error("linked selection reference is not a numeric field")
	ErrBadCount      = Error("unknown count destination")
	ErrNoSequence    = Error("row has no peptide sequence")
	ErrNoHeader      = Error("row data has no header line")
	ErrMissingColumn = Error("row data lacks a required column")
	ErrTooFewColumns = Error("row has too few tab separated columns")
	ErrBadNumber     = Error("row has a non-numeric value in a numeric column")
)

// Field identifies one aggregatable column of a Row. The peptide sequence is
// the grouping key, not a Field.
type Field uint8

const (
	FieldPeptide Field = iota
	FieldConfidence
	FieldArea
	FieldMZ
	FieldMass
	FieldPPM
	FieldRT
	FieldScan
	FieldCharge
	FieldLength
	FieldFeature
	FieldAccession
	FieldPTM
	FieldSourceFile
	numFields
)

var fieldNames = [numFields]string{
	"Peptide", "Confidence", "Area", "m/z", "Mass", "ppm", "RT", "Scan",
	"Charge", "Length", "Feature Id", "Accession", "PTM", "Source File",
}

// String returns the column name of the field as used in tabular
// representations of rows.
func (f Field) String() string {
	if f >= numFields {
		return "unknown"
	}

	return fieldNames[f]
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindFloat
	kindInt
	kindList
)

func (f Field) kind() fieldKind {
	switch f {
	case FieldPeptide, FieldFeature, FieldPTM, FieldSourceFile:
		return kindString
	case FieldScan, FieldCharge, FieldLength:
		return kindInt
	case FieldAccession:
		return kindList
	default:
		return kindFloat
	}
}

func (f Field) numeric() bool {
	kind := f.kind()

	return kind == kindFloat || kind == kindInt
}

// Row is one raw peptide spectrum match, normalized to the common column
// set shared by all identification tool importers.
type Row struct {
	Peptide    string
	Sequence   string
	Confidence float64
	Area       float64
	MZ         float64
	Mass       float64
	PPM        float64
	RT         float64
	Scan       int64
	Charge     int
	Length     int
	Feature    string
	Accessions []string
	PTM        string
	SourceFile string
}

func (r *Row) float(f Field) float64 {
	switch f {
	case FieldConfidence:
		return r.Confidence
	case FieldArea:
		return r.Area
	case FieldMZ:
		return r.MZ
	case FieldMass:
		return r.Mass
	case FieldPPM:
		return r.PPM
	case FieldRT:
		return r.RT
	case FieldScan:
		return float64(r.Scan)
	case FieldCharge:
		return float64(r.Charge)
	case FieldLength:
		return float64(r.Length)
	default:
		return 0
	}
}

func (r *Row) setFloat(f Field, v float64) {
	switch f {
	case FieldConfidence:
		r.Confidence = v
	case FieldArea:
		r.Area = v
	case FieldMZ:
		r.MZ = v
	case FieldMass:
		r.Mass = v
	case FieldPPM:
		r.PPM = v
	case FieldRT:
		r.RT = v
	case FieldScan:
		r.Scan = int64(v)
	case FieldCharge:
		r.Charge = int(v)
	case FieldLength:
		r.Length = int(v)
	}
}

func (r *Row) str(f Field) string {
	switch f {
	case FieldPeptide:
		return r.Peptide
	case FieldFeature:
		return r.Feature
	case FieldPTM:
		return r.PTM
	case FieldSourceFile:
		return r.SourceFile
	default:
		return ""
	}
}

func (r *Row) setStr(f Field, v string) {
	switch f {
	case FieldPeptide:
		r.Peptide = v
	case FieldFeature:
		r.Feature = v
	case FieldPTM:
		r.PTM = v
	case FieldSourceFile:
		r.SourceFile = v
	}
}

func copyField(dst *Row, src Row, f Field) {
	switch f.kind() {
	case kindString:
		dst.setStr(f, src.str(f))
	case kindList:
		dst.Accessions = src.Accessions
	default:
		dst.setFloat(f, src.float(f))
	}
}

// Record is one aggregated peptide: the db search side, the de novo side,
// and the annotation added later. A PSMCount of 0 means the peptide was
// never identified by db search; a DeNovoMatchCount of 0 means it was never
// identified de novo. An empty TaxonID means taxonomy annotation did not
// resolve; an empty Function means function annotation did not resolve.
type Record struct {
	Peptide  string
	Sequence string

	PSMCount   int
	RT         float64
	Scan       int64
	MZ         float64
	Charge     int
	PPM        float64
	Length     int
	Feature    string
	Confidence float64
	Area       float64
	Mass       float64
	Accessions []string
	PTM        string
	SourceFile string

	DeNovoConfidence float64
	DeNovoArea       float64
	DeNovoMatchCount int
	DeNovoScan       int64
	DeNovoSourceFile string

	TaxonID      taxonomy.TaxID
	TaxonName    string
	LineageIDs   taxonomy.Lineage
	LineageNames [taxonomy.NumRanks]string

	Function funcmap.Annotation

	SampleName string
}

func rowRecord(r Row) Record {
	return Record{
		Peptide:    r.Peptide,
		Sequence:   r.Sequence,
		RT:         r.RT,
		Scan:       r.Scan,
		MZ:         r.MZ,
		Charge:     r.Charge,
		PPM:        r.PPM,
		Length:     r.Length,
		Feature:    r.Feature,
		Confidence: r.Confidence,
		Area:       r.Area,
		Mass:       r.Mass,
		Accessions: r.Accessions,
		PTM:        r.PTM,
		SourceFile: r.SourceFile,
	}
}
