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

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/annotate"
	"github.com/wtsi-hgi/metapep/funcmap"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/samples"
	"github.com/wtsi-hgi/metapep/store"
	"github.com/wtsi-hgi/metapep/taxmap"
)

var (
	annotateDBSearch  []string
	annotateDeNovo    []string
	annotateSample    string
	annotateOutput    string
	annotateTaxDB     string
	annotateMapDB     string
	annotateEggnog    string
	annotateKO        string
	annotateMaxEvalue float64
	annotateCombine   bool
	annotatePattern   string

	annotateDBSearchFormat     string
	annotateDBSearchConfidence string
	annotateDeNovoFormat       string
	annotateDeNovoConfidence   string
)

// annotateCmd represents the annotate command.
var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Aggregate and annotate one sample's peptides",
	Long: `Aggregate and annotate one sample's peptides.

Provide the normalized row exports of an identification tool with
--db-search and, optionally, --de-novo (both repeatable, both accepting
.gz files). Rows are aggregated to one record per peptide, and de novo
identifications of peptides the db search also found are folded in to the
db search record.

With --taxdb and --mapdb, each record is annotated with the lowest common
ancestor of its protein accessions and its gap-filled standard lineage.

With --eggnog or --ko, each record is annotated with the function of its
accessions: only the annotation fields every matched accession agrees on,
or everything joined together with --combine. eggNOG hits with an e-value
over --max-evalue are ignored.

--pattern normalizes accessions the same way as for 'mapdb'.

The result is a sample table named by --sample (default: the first
db-search file's base name), written to --output; .gz output is
compressed.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := annotateRun(args); err != nil {
			die("%s", err)
		}
	},
}

func annotateRun(args []string) error {
	if len(args) != 0 {
		return errors.New("annotate takes no positional arguments") //nolint:err113
	}

	if len(annotateDBSearch) == 0 && len(annotateDeNovo) == 0 {
		return errors.New("at least one --db-search or --de-novo file should be provided") //nolint:err113
	}

	records, err := aggregateRecords()
	if err != nil {
		return err
	}

	if err := annotateRecords(records); err != nil {
		return err
	}

	nameSample(records)

	return samples.WriteFile(annotateOutput, samples.NewTable(tableMetadata(), records))
}

func aggregateRecords() ([]peptide.Record, error) {
	dbRecords, err := aggregateFiles(annotateDBSearch, peptide.DBSearchProfile())
	if err != nil {
		return nil, err
	}

	deNovoRecords, err := aggregateFiles(annotateDeNovo, peptide.DeNovoProfile())
	if err != nil {
		return nil, err
	}

	records := peptide.MergeDeNovo(dbRecords, deNovoRecords)

	info("aggregated %d peptides", len(records))

	return records, nil
}

func aggregateFiles(paths []string, profile peptide.Profile) ([]peptide.Record, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	agg, err := peptide.NewAggregator(profile)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if err := peptide.ParseFile(path, agg.Add); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return agg.Records(), nil
}

func annotateRecords(records []peptide.Record) error {
	if annotateTaxDB != "" {
		if err := annotateTaxonomy(records); err != nil {
			return err
		}
	}

	if annotateEggnog != "" || annotateKO != "" {
		return annotateFunction(records)
	}

	return nil
}

func annotateTaxonomy(records []peptide.Record) error {
	if annotateMapDB == "" {
		return errors.New("--taxdb needs --mapdb") //nolint:err113
	}

	s, err := store.Open(annotateTaxDB)
	if err != nil {
		return err
	}

	defer s.Close()

	tree, err := s.Tree()
	if err != nil {
		return err
	}

	mdb, err := taxmap.OpenDB(annotateMapDB)
	if err != nil {
		return err
	}

	defer mdb.Close()

	stats, err := annotate.Taxonomy(records, mdb, tree)
	if err != nil {
		return err
	}

	info("taxonomy: %d of %d records resolved", stats.TaxaResolved, stats.Records)

	return nil
}

func annotateFunction(records []peptide.Record) error {
	fmap, err := loadFuncmap()
	if err != nil {
		return err
	}

	stats := annotate.Function(records, fmap, annotateCombine)

	info("function: %d of %d records resolved", stats.FunctionsResolved, stats.Records)

	return nil
}

func loadFuncmap() (*funcmap.Map, error) {
	if annotateEggnog != "" && annotateKO != "" {
		return nil, errors.New("only one of --eggnog and --ko can be used") //nolint:err113
	}

	var pattern *regexp.Regexp

	if annotatePattern != "" {
		var err error

		if pattern, err = regexp.Compile(annotatePattern); err != nil {
			return nil, fmt.Errorf("invalid --pattern: %w", err)
		}
	}

	if annotateEggnog != "" {
		return readFuncmap(annotateEggnog, func(r io.Reader) (*funcmap.Map, error) {
			return funcmap.NewEggnog(r, annotateMaxEvalue, pattern)
		})
	}

	return readFuncmap(annotateKO, func(r io.Reader) (*funcmap.Map, error) {
		return funcmap.NewKO(r, pattern)
	})
}

func readFuncmap(path string, load func(io.Reader) (*funcmap.Map, error)) (*funcmap.Map, error) {
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}

	defer closer()

	fmap, err := load(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return fmap, nil
}

func nameSample(records []peptide.Record) {
	sample := annotateSample

	if sample == "" {
		var source string

		if len(annotateDBSearch) > 0 {
			source = annotateDBSearch[0]
		} else {
			source = annotateDeNovo[0]
		}

		sample = strings.TrimSuffix(filepath.Base(source), ".gz")
		sample = strings.TrimSuffix(sample, filepath.Ext(sample))
	}

	for i := range records {
		records[i].SampleName = sample
	}
}

func tableMetadata() samples.Metadata {
	meta := samples.Metadata{}

	if len(annotateDBSearch) > 0 {
		meta.DBSearchFormat = annotateDBSearchFormat
		meta.DBSearchConfidenceUnit = annotateDBSearchConfidence
	}

	if len(annotateDeNovo) > 0 {
		meta.DeNovoFormat = annotateDeNovoFormat
		meta.DeNovoConfidenceUnit = annotateDeNovoConfidence
	}

	if annotateTaxDB != "" {
		meta.TaxonomySystem = taxonomySystemName()
	}

	switch {
	case annotateEggnog != "":
		meta.FunctionDatabase = "eggNOG"
	case annotateKO != "":
		meta.FunctionDatabase = "KEGG"
	}

	return meta
}

func taxonomySystemName() string {
	s, err := store.Open(annotateTaxDB)
	if err != nil {
		return ""
	}

	defer s.Close()

	return s.System().String()
}

func init() {
	RootCmd.AddCommand(annotateCmd)

	annotateCmd.Flags().StringSliceVar(&annotateDBSearch, "db-search", nil, "db search row export (repeatable)")
	annotateCmd.Flags().StringSliceVar(&annotateDeNovo, "de-novo", nil, "de novo row export (repeatable)")
	annotateCmd.Flags().StringVarP(&annotateSample, "sample", "s", "", "sample name for the table")
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "", "output table file")
	annotateCmd.Flags().StringVarP(&annotateTaxDB, "taxdb", "t", "", "taxonomy database made with 'build'")
	annotateCmd.Flags().StringVarP(&annotateMapDB, "mapdb", "m", "", "mapping database made with 'mapdb'")
	annotateCmd.Flags().StringVar(&annotateEggnog, "eggnog", "", "eggNOG-mapper annotations file")
	annotateCmd.Flags().StringVar(&annotateKO, "ko", "", "accession to KEGG KO mapping file")
	annotateCmd.Flags().Float64Var(&annotateMaxEvalue, "max-evalue", funcmap.DefaultMaxEvalue,
		"ignore eggNOG hits with a larger e-value")
	annotateCmd.Flags().BoolVar(&annotateCombine, "combine", false, "join function annotations instead of keeping the consensus")
	annotateCmd.Flags().StringVarP(&annotatePattern, "pattern", "p", "", "regexp that reduces accessions to their matched part")

	annotateCmd.Flags().StringVar(&annotateDBSearchFormat, "db-search-format", "", "identification tool of the db search export")
	annotateCmd.Flags().StringVar(&annotateDBSearchConfidence, "db-search-confidence-unit", "",
		"unit of the db search confidence column")
	annotateCmd.Flags().StringVar(&annotateDeNovoFormat, "de-novo-format", "", "identification tool of the de novo export")
	annotateCmd.Flags().StringVar(&annotateDeNovoConfidence, "de-novo-confidence-unit", "",
		"unit of the de novo confidence column")

	if err := annotateCmd.MarkFlagRequired("output"); err != nil {
		die("%s", err)
	}
}
