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

// package server exposes taxonomy queries over a loaded reference tree,
// and optionally a loaded project table, as a JSON HTTP API.

package server

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/metapep/samples"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"vimagination.zapto.org/httpfile"
)

// EndPointREST is the base path of the api endpoints.
const EndPointREST = "/rest/v1"

const tableDownloadName = "table.tsv"

// Server serves lineage, LCA, name and structure queries over one taxonomy
// tree, and metadata of at most one project table.
type Server struct {
	tree   *taxonomy.Tree
	router *gin.Engine
	logger log15.Logger

	tableFile *httpfile.File

	mu    sync.RWMutex
	table *samples.Table
}

// New returns a Server for the given tree that logs through the given
// logger.
func New(tree *taxonomy.Tree, logger log15.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		tree:      tree,
		router:    gin.New(),
		logger:    logger,
		tableFile: httpfile.NewWithData(tableDownloadName, nil),
	}

	s.router.Use(gin.RecoveryWithWriter(logWriter{logger}))
	s.addEndpoints()

	return s
}

// logWriter lets gin's recovery middleware log through log15.
type logWriter struct {
	logger log15.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Error(string(p))

	return len(p), nil
}

func (s *Server) addEndpoints() {
	rest := s.router.Group(EndPointREST)

	rest.GET("/info", s.getInfo)
	rest.GET("/lineage/:id", s.getLineage)
	rest.GET("/lca", s.getLCA)
	rest.GET("/name/:name", s.getName)
	rest.GET("/children/:id", s.getChildren)
	rest.GET("/ancestors/:id", s.getAncestors)
	rest.GET("/table/meta", s.getTableMeta)
	rest.GET("/table/samples", s.getTableSamples)
	rest.GET("/"+tableDownloadName, gin.WrapH(s.tableFile))
}

// Handler returns the http handler of the server, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("server starting", "addr", addr)

	return s.router.Run(addr)
}

// LoadTable makes the given project table available from the table
// endpoints, replacing any previous one, and regenerates the table
// download.
func (s *Server) LoadTable(table *samples.Table) error {
	var buf bytes.Buffer

	if err := samples.Write(&buf, table); err != nil {
		return err
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	w := s.tableFile.Create()
	w.Write(buf.Bytes()) //nolint:errcheck

	return w.Close()
}

func (s *Server) loadedTable() *samples.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.table
}
