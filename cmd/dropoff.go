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
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/analytics"
	"github.com/wtsi-hgi/metapep/internal/keys"
	"github.com/wtsi-hgi/metapep/samples"
	"github.com/wtsi-hgi/metapep/store"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"golang.org/x/exp/slices"
)

const maxBranchingShown = 3

var (
	dropoffRanks  [taxonomy.NumRanks]string
	dropoffTaxon  string
	dropoffTaxDB  string
	dropoffCounts string
	dropoffFrom   string
)

// dropoffCmd represents the dropoff command.
var dropoffCmd = &cobra.Command{
	Use:   "dropoff",
	Short: "Report where a table's annotations fall off a target lineage",
	Long: `Report where a table's annotations fall off a target lineage.

Provide a table made with 'annotate' or 'merge', and a target lineage:
either rank by rank with --domain, --phylum etc, or as --taxon plus
--taxdb to take the gap-filled lineage of a taxon from a reference
database.

For each pair of adjacent classified ranks of the target lineage, the
table's quantity at the coarser rank is decomposed in to the part
unannotated at the finer rank, the part branching to other taxa there, and
the part continuing along the target. The first row decomposes the whole
table against the coarsest rank.

--counts says what to sum: 'psm' for peptide spectrum matches, 'denovo'
for de novo matches.

The cumulative annotation drop from --from (default domain) down to the
finest classified rank is printed underneath.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := dropoffRun(args); err != nil {
			die("%s", err)
		}
	},
}

func dropoffRun(args []string) error {
	if len(args) != 1 {
		return errors.New("exactly 1 table should be provided") //nolint:err113
	}

	table, err := samples.ReadFile(args[0])
	if err != nil {
		return err
	}

	start, err := taxonomy.ParseStandardRank(dropoffFrom)
	if err != nil {
		return fmt.Errorf("invalid --from %q: %w", dropoffFrom, err)
	}

	target, err := dropoffTarget()
	if err != nil {
		return err
	}

	quantity, err := dropoffQuantity()
	if err != nil {
		return err
	}

	report, err := analytics.Allocation(table.Records, target, quantity)
	if err != nil {
		return err
	}

	renderDropoffReport(report, start)

	return nil
}

func dropoffTarget() ([taxonomy.NumRanks]string, error) {
	if dropoffTaxon == "" {
		return dropoffRanks, nil
	}

	if dropoffTaxDB == "" {
		return dropoffRanks, errors.New("--taxon needs --taxdb") //nolint:err113
	}

	s, err := store.Open(dropoffTaxDB)
	if err != nil {
		return dropoffRanks, err
	}

	defer s.Close()

	tree, err := s.Tree()
	if err != nil {
		return dropoffRanks, err
	}

	id := taxonomy.TaxID(dropoffTaxon)
	if !tree.Contains(id) {
		return dropoffRanks, fmt.Errorf("%s: %w", dropoffTaxon, taxonomy.ErrUnknownTaxon)
	}

	return tree.LineageNames(tree.Lineage(id).FillGaps()), nil
}

func dropoffQuantity() (analytics.Quantity, error) {
	switch dropoffCounts {
	case "psm":
		return analytics.PSMs, nil
	case "denovo":
		return analytics.Matches, nil
	}

	return nil, errors.New("counts must be psm or denovo") //nolint:err113
}

func renderDropoffReport(report *analytics.Report, start taxonomy.Rank) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"From", "To", "Total", "Continuing", "Unannotated", "Branching", "Drop %"})

	for i := range report.Transitions {
		table.Append(dropoffColumns(&report.Transitions[i]))
	}

	table.Render()

	printCumulativeDrop(report, start)
}

func dropoffColumns(t *analytics.Transition) []string {
	var drop float64

	if t.Total > 0 {
		drop = (t.Total - t.Continuing) / t.Total * 100 //nolint:mnd
	}

	return []string{
		fmt.Sprintf("%s (%s)", t.FromName, t.From),
		fmt.Sprintf("%s (%s)", t.ToName, t.To),
		fmt.Sprintf("%.0f", t.Total),
		fmt.Sprintf("%.0f", t.Continuing),
		fmt.Sprintf("%.0f", t.Unannotated),
		branchingCell(t),
		fmt.Sprintf("%.1f", drop),
	}
}

// branchingCell summarises the diverging taxa at the finer rank, largest
// first.
func branchingCell(t *analytics.Transition) string {
	names := keys.Sorted(t.Branching)

	slices.SortStableFunc(names, func(a, b string) int {
		if t.Branching[a] > t.Branching[b] {
			return -1
		} else if t.Branching[a] < t.Branching[b] {
			return 1
		}

		return 0
	})

	parts := make([]string, 0, maxBranchingShown+1)

	for i, name := range names {
		if i == maxBranchingShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(names)-maxBranchingShown))

			break
		}

		parts = append(parts, fmt.Sprintf("%s: %.0f", name, t.Branching[name]))
	}

	return strings.Join(parts, ", ")
}

func printCumulativeDrop(report *analytics.Report, start taxonomy.Rank) {
	if drop, ok := report.CumulativeAnnotationDrop(start); ok {
		cliPrint("cumulative annotation drop from %s: %.1f%%\n", start, drop)
	}
}

func init() {
	RootCmd.AddCommand(dropoffCmd)

	for rank := taxonomy.Domain; rank <= taxonomy.Species; rank++ {
		name := rank.String()
		dropoffCmd.Flags().StringVar(&dropoffRanks[rank], name, "", "target lineage name at "+name)
	}

	dropoffCmd.Flags().StringVar(&dropoffTaxon, "taxon", "", "taxon id whose lineage to use as the target")
	dropoffCmd.Flags().StringVarP(&dropoffTaxDB, "taxdb", "t", "", "taxonomy database made with 'build'")
	dropoffCmd.Flags().StringVarP(&dropoffCounts, "counts", "c", "psm", "quantity to sum: psm or denovo")
	dropoffCmd.Flags().StringVar(&dropoffFrom, "from", "domain", "rank the cumulative drop starts from")
}
