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

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/samples"
)

var (
	mergeOutput string
	mergeRemove []string
)

// mergeCmd represents the merge command.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge sample tables",
	Long: `Merge sample tables.

Provide the tables made with 'annotate' (or previous merges) to combine in
to one table. Their metadata is merged by consensus: a field set by only
some tables is kept, and tables disagreeing on a field's value is an
error, as is any raw source file contributing to more than one table.

--remove drops the named samples from the result; metadata no longer
supported by any remaining record is cleared.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := mergeRun(args); err != nil {
			die("%s", err)
		}
	},
}

func mergeRun(args []string) error {
	if len(args) == 0 {
		return errors.New("at least 1 table should be provided") //nolint:err113
	}

	tables := make([]*samples.Table, len(args))

	for i, path := range args {
		table, err := samples.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		tables[i] = table
	}

	merged, err := samples.Concat(tables)
	if err != nil {
		return err
	}

	if len(mergeRemove) > 0 {
		merged = samples.RemoveSamples(merged, mergeRemove)
	}

	info("merged %d records over %d samples", len(merged.Records), len(merged.SampleNames()))

	return samples.WriteFile(mergeOutput, merged)
}

func init() {
	RootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "output table file")
	mergeCmd.Flags().StringSliceVarP(&mergeRemove, "remove", "r", nil, "sample to drop from the result (repeatable)")

	if err := mergeCmd.MarkFlagRequired("output"); err != nil {
		die("%s", err)
	}
}
