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

	"github.com/dustin/go-humanize" //nolint:misspell
	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/metapep/samples"
	"github.com/wtsi-hgi/metapep/server"
	"github.com/wtsi-hgi/metapep/store"
)

var (
	serverBind    string
	serverTaxDB   string
	serverTable   string
	serverLogfile string
)

// serverCmd represents the server command.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve taxonomy queries over HTTP",
	Long: `Serve taxonomy queries over HTTP.

Loads the reference database made with 'build' and serves lineage, lowest
common ancestor, name and tree structure queries as a JSON REST API under
` + server.EndPointREST + `.

With --table, the given sample table's metadata is served too, and the
table itself is downloadable from /rest/v1/table.tsv.

--logfile diverts logging from stderr to the given path.`,
	Run: func(_ *cobra.Command, args []string) {
		if err := serverRun(args); err != nil {
			die("%s", err)
		}
	},
}

func serverRun(args []string) error {
	if len(args) != 0 {
		return errors.New("server takes no positional arguments") //nolint:err113
	}

	if serverLogfile != "" {
		logToFile(serverLogfile)
	}

	s, err := store.Open(serverTaxDB)
	if err != nil {
		return err
	}

	defer s.Close()

	tree, err := s.Tree()
	if err != nil {
		return err
	}

	info("loaded %s taxa from %s", humanize.Comma(int64(tree.Len())), serverTaxDB)

	srv := server.New(tree, appLogger)

	if serverTable != "" {
		table, err := samples.ReadFile(serverTable)
		if err != nil {
			return err
		}

		if err := srv.LoadTable(table); err != nil {
			return err
		}

		info("loaded table %s with %d records", table.ID, len(table.Records))
	}

	return srv.Start(serverBind)
}

func init() {
	RootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&serverBind, "bind", "b", ":8080", "address to listen on")
	serverCmd.Flags().StringVarP(&serverTaxDB, "taxdb", "t", "", "taxonomy database made with 'build'")
	serverCmd.Flags().StringVar(&serverTable, "table", "", "sample table to serve")
	serverCmd.Flags().StringVar(&serverLogfile, "logfile", "", "log to this file instead of stderr")

	if err := serverCmd.MarkFlagRequired("taxdb"); err != nil {
		die("%s", err)
	}
}
