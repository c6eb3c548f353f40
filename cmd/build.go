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
	"os"

	"github.com/dustin/go-humanize" //nolint:misspell
	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/store"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"github.com/wtsi-hgi/metapep/taxonomy/gtdb"
	"github.com/wtsi-hgi/metapep/taxonomy/ncbi"
)

var (
	buildFormat string
	buildOutput string
)

// buildCmd represents the build command.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a taxonomy reference database",
	Long: `Build a taxonomy reference database.

With --format ncbi, provide an NCBI taxdump: either a directory holding
nodes.dmp and names.dmp (taxidlineage.dmp is used too when present), or a
new_taxdump .tar.gz archive.

With --format gtdb, provide one or more GTDB taxonomy files, such as
bac120_taxonomy.tsv and ar53_taxonomy.tsv, and the genome to species index
is stored alongside the tree.

The result is a single file database that the other subcommands load with
--taxdb.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := buildRun(args); err != nil {
			die("%s", err)
		}
	},
}

func buildRun(args []string) error {
	if len(args) == 0 {
		return errors.New("at least 1 input should be provided") //nolint:err113
	}

	tree, genomes, err := loadTaxonomy(args)
	if err != nil {
		return err
	}

	if err := store.Create(buildOutput, tree, genomes); err != nil {
		return err
	}

	info("stored %s taxa in %s", humanize.Comma(int64(tree.Len())), buildOutput)

	if genomes != nil {
		info("stored %s genome accessions", humanize.Comma(int64(genomes.Len())))
	}

	return nil
}

func loadTaxonomy(args []string) (*taxonomy.Tree, *gtdb.Genomes, error) {
	system, err := taxonomy.ParseSystem(buildFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --format %q: %w", buildFormat, err)
	}

	if system == taxonomy.GTDB {
		return gtdb.Load(args...)
	}

	if len(args) != 1 {
		return nil, nil, errors.New("ncbi format takes exactly 1 input") //nolint:err113
	}

	tree, err := loadNCBI(args[0])

	return tree, nil, err
}

func loadNCBI(path string) (*taxonomy.Tree, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if st.IsDir() {
		return ncbi.Load(path)
	}

	return ncbi.LoadArchive(path)
}

func init() {
	RootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "ncbi", "taxonomy format: ncbi or gtdb")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output database file")

	if err := buildCmd.MarkFlagRequired("output"); err != nil {
		die("%s", err)
	}
}
