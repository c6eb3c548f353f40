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

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wtsi-hgi/metapep/internal/keys"
)

// tableMetaJSON summarises the loaded project table.
type tableMetaJSON struct {
	ID                     string   `json:"id"`
	Records                int      `json:"records"`
	Samples                int      `json:"samples"`
	SourceFiles            []string `json:"source_files"`
	DBSearchFormat         string   `json:"db_search_format,omitempty"`
	DBSearchConfidenceUnit string   `json:"db_search_confidence_unit,omitempty"`
	DeNovoFormat           string   `json:"de_novo_format,omitempty"`
	DeNovoConfidenceUnit   string   `json:"de_novo_confidence_unit,omitempty"`
	TaxonomySystem         string   `json:"taxonomy_system,omitempty"`
	FunctionDatabase       string   `json:"function_database,omitempty"`
}

func (s *Server) getTableMeta(c *gin.Context) {
	table := s.loadedTable()
	if table == nil {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	samples := table.SampleNames()
	sources := keys.Sorted(table.SourceFiles())

	c.JSON(http.StatusOK, tableMetaJSON{
		ID:                     table.ID.String(),
		Records:                len(table.Records),
		Samples:                len(samples),
		SourceFiles:            sources,
		DBSearchFormat:         table.Meta.DBSearchFormat,
		DBSearchConfidenceUnit: table.Meta.DBSearchConfidenceUnit,
		DeNovoFormat:           table.Meta.DeNovoFormat,
		DeNovoConfidenceUnit:   table.Meta.DeNovoConfidenceUnit,
		TaxonomySystem:         table.Meta.TaxonomySystem,
		FunctionDatabase:       table.Meta.FunctionDatabase,
	})
}

func (s *Server) getTableSamples(c *gin.Context) {
	table := s.loadedTable()
	if table == nil {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	c.JSON(http.StatusOK, table.SampleNames())
}
