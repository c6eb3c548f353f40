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
	"time"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/clickhouse"
	"github.com/wtsi-hgi/metapep/samples"
)

const defaultExportTimeout = 5 * time.Minute

var (
	exportProject      string
	exportDSN          string
	exportDatabase     string
	exportQueryTimeout string
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a sample table to ClickHouse",
	Long: `Export a sample table to ClickHouse.

Provide a table made with 'annotate' or 'merge' and the project it belongs
to. The table is shipped as one snapshot keyed by its id, and the
project's active snapshot is switched over only once all rows are in, so
dashboards reading the active snapshot never see a partial export.
Re-exporting the same table replaces its snapshot.

The connection details come from --dsn and --database, the
METAPEP_CLICKHOUSE_DSN and METAPEP_CLICKHOUSE_DATABASE environment
variables, or a .env/.env.local file in the working directory.`,
	Run: func(_ *cobra.Command, args []string) {
		setCLIFormat()

		if err := exportRun(args); err != nil {
			die("%s", err)
		}
	},
}

func exportRun(args []string) error {
	if len(args) != 1 {
		return errors.New("exactly 1 table should be provided") //nolint:err113
	}

	loadClickhouseDotEnv()

	cfg, err := clickhouseConfigFromEnvAndFlags(exportDSN, exportDatabase,
		exportQueryTimeout, defaultExportTimeout)
	if err != nil {
		return err
	}

	table, err := samples.ReadFile(args[0])
	if err != nil {
		return err
	}

	client, err := clickhouse.NewClient(cfg)
	if err != nil {
		return err
	}

	defer client.Close()

	if err := client.Export(exportProject, table); err != nil {
		return err
	}

	info("exported snapshot %s of project %s: %d records over %d samples",
		table.ID, exportProject, len(table.Records), len(table.SampleNames()))

	return nil
}

func init() {
	RootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "project the table belongs to")
	exportCmd.Flags().StringVar(&exportDSN, "dsn", "", "clickhouse DSN, eg. clickhouse://host:9000/?database=metapep")
	exportCmd.Flags().StringVar(&exportDatabase, "database", "", "clickhouse database name")
	exportCmd.Flags().StringVar(&exportQueryTimeout, "query-timeout", "", "timeout for clickhouse operations, eg. 5m")

	if err := exportCmd.MarkFlagRequired("project"); err != nil {
		die("%s", err)
	}
}
