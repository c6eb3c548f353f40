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
	"os"
	"regexp"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/dustin/go-humanize" //nolint:misspell
	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/store"
	"github.com/wtsi-hgi/metapep/taxmap"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
)

const defaultBatchMem = "256M"

var (
	mapdbOutput    string
	mapdbTaxDB     string
	mapdbAccCol    int
	mapdbTaxCol    int
	mapdbDelimiter string
	mapdbPattern   string
	mapdbDedupe    string
	mapdbBatchMem  string
	mapdbNCBIMeta  []string
)

// mapdbCmd represents the mapdb command.
var mapdbCmd = &cobra.Command{
	Use:   "mapdb",
	Short: "Build an accession to taxon mapping database",
	Long: `Build an accession to taxon mapping database.

Provide one or more delimited mapping files, such as the NCBI
prot.accession2taxid release files or a GTDB protein to genome mapping,
and the accession and taxon columns to read (--delimiter defaults to
comma; NCBI releases need --delimiter tab).

The mapped values must suit the reference database given with --taxdb:
numeric taxon ids for an NCBI reference, genome accessions for a GTDB
one.

--dedupe says what to do when an accession appears more than once: 'first'
keeps the first mapping, 'lca' resolves all of its taxa to their lowest
common ancestor, and 'fail' rejects the file.

Accessions can be normalized with --pattern; each accession is reduced to
the part the pattern matches, and rows whose accession does not match are
dropped.

A GTDB protein to genome mapping can be stored against an NCBI reference
by also providing the GTDB metadata files (bac120_metadata.tsv and
ar53_metadata.tsv) with --ncbi-metadata; each genome accession is then
converted to the NCBI taxon id the metadata records for it.

Every mapped taxon is checked against the reference database; rows whose
taxon it does not contain are dropped and counted.

Rows are written to the output SQLite database in transactions of
--batch-mem worth of rows.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := mapdbRun(args); err != nil {
			die("%s", err)
		}
	},
}

func mapdbRun(args []string) error {
	if len(args) == 0 {
		return errors.New("at least 1 mapping file should be provided") //nolint:err113
	}

	batchMem, err := bytefmt.ToBytes(mapdbBatchMem)
	if err != nil {
		return fmt.Errorf("invalid --batch-mem: %w", err)
	}

	s, err := store.Open(mapdbTaxDB)
	if err != nil {
		return err
	}

	defer s.Close()

	if len(mapdbNCBIMeta) > 0 && s.System() == taxonomy.GTDB {
		return errors.New("--ncbi-metadata needs an NCBI --taxdb") //nolint:err113
	}

	tree, err := s.Tree()
	if err != nil {
		return err
	}

	cfg, err := mapdbConfig()
	if err != nil {
		return err
	}

	b, err := taxmap.NewBuilder(mapdbOutput, batchMem)
	if err != nil {
		return err
	}

	if err := importMappings(b, s, tree, cfg, args); err != nil {
		b.Close()

		return err
	}

	if err := b.Close(); err != nil {
		return err
	}

	info("mapped %s accessions in %s", humanize.Comma(b.Rows()), mapdbOutput)

	if b.Dropped() > 0 {
		warn("dropped %s rows with unusable accessions", humanize.Comma(int64(b.Dropped())))
	}

	return nil
}

func mapdbConfig() (taxmap.Config, error) {
	cfg := taxmap.Config{
		AccessionColumn: mapdbAccCol,
		TaxonColumn:     mapdbTaxCol,
	}

	if mapdbDelimiter == `\t` {
		cfg.Delimiter = '\t'
	} else if mapdbDelimiter != "" {
		cfg.Delimiter = []rune(mapdbDelimiter)[0]
	}

	if mapdbPattern != "" {
		re, err := regexp.Compile(mapdbPattern)
		if err != nil {
			return cfg, fmt.Errorf("invalid --pattern: %w", err)
		}

		cfg.AccessionPattern = re
	}

	if len(mapdbNCBIMeta) > 0 {
		taxa, err := gtdb.LoadNCBIMap(mapdbNCBIMeta...)
		if err != nil {
			return cfg, err
		}

		cfg.GenomeTaxa = taxa
	}

	if err := setDedupe(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func setDedupe(cfg *taxmap.Config) error {
	switch mapdbDedupe {
	case "first":
		cfg.Duplicates = taxmap.KeepFirst
	case "lca":
		cfg.Duplicates = taxmap.MergeLCA
	case "fail":
		cfg.Duplicates = taxmap.Fail
	default:
		return errors.New("dedupe must be first, lca or fail") //nolint:err113
	}

	return nil
}

func importMappings(b *taxmap.Builder, s *store.Store, tree *taxonomy.Tree,
	cfg taxmap.Config, paths []string) error {
	for _, path := range paths {
		r, closer, err := openInput(path)
		if err != nil {
			return err
		}

		if s.System() == taxonomy.GTDB {
			err = importGTDBMapping(b, s, tree, cfg, r)
		} else {
			err = b.ImportNCBI(r, tree, cfg)
		}

		closer()

		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return nil
}

func importGTDBMapping(b *taxmap.Builder, s *store.Store, tree *taxonomy.Tree,
	cfg taxmap.Config, r io.Reader) error {
	genomes, err := s.Genomes()
	if err != nil {
		return err
	}

	return b.ImportGTDB(r, tree, genomes, cfg)
}

// openInput opens the given file for reading, decompressing it if its name
// ends .gz. "-" means STDIN.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, func() { f.Close() }, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()

		return nil, nil, err
	}

	return gz, func() { gz.Close(); f.Close() }, nil
}

func init() {
	RootCmd.AddCommand(mapdbCmd)

	mapdbCmd.Flags().StringVarP(&mapdbOutput, "output", "o", "", "output database file")
	mapdbCmd.Flags().StringVarP(&mapdbTaxDB, "taxdb", "t", "", "taxonomy database made with 'build'")
	mapdbCmd.Flags().IntVar(&mapdbAccCol, "acc-col", 0, "0-based accession column")
	mapdbCmd.Flags().IntVar(&mapdbTaxCol, "tax-col", 1, "0-based taxon column")
	mapdbCmd.Flags().StringVarP(&mapdbDelimiter, "delimiter", "d", "", "column delimiter, eg. '\\t' (default comma)")
	mapdbCmd.Flags().StringVarP(&mapdbPattern, "pattern", "p", "", "regexp that reduces accessions to their matched part")
	mapdbCmd.Flags().StringVar(&mapdbDedupe, "dedupe", "first", "duplicate accession policy: first, lca or fail")
	mapdbCmd.Flags().StringSliceVar(&mapdbNCBIMeta, "ncbi-metadata", nil,
		"GTDB metadata files converting genomes to NCBI taxon ids (repeatable)")
	mapdbCmd.Flags().StringVar(&mapdbBatchMem, "batch-mem", defaultBatchMem, "memory to batch rows in before committing")

	for _, flag := range []string{"output", "taxdb"} {
		if err := mapdbCmd.MarkFlagRequired(flag); err != nil {
			die("%s", err)
		}
	}
}
