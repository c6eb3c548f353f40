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
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

// taxonJSON is how a single taxon is returned.
type taxonJSON struct {
	ID   taxonomy.TaxID `json:"id"`
	Name string         `json:"name"`
	Rank string         `json:"rank"`
}

func (s *Server) taxon(id taxonomy.TaxID) taxonJSON {
	return taxonJSON{ID: id, Name: s.tree.Name(id), Rank: s.tree.RankOf(id).String()}
}

func (s *Server) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system": s.tree.System().String(),
		"root":   s.tree.Root(),
		"taxa":   s.tree.Len(),
	})
}

// lineageJSON pairs the raw and gap-filled standard lineages of a taxon.
type lineageJSON struct {
	Taxon  taxonJSON                 `json:"taxon"`
	Ranks  [taxonomy.NumRanks]string `json:"ranks"`
	IDs    taxonomy.Lineage          `json:"ids"`
	Names  [taxonomy.NumRanks]string `json:"names"`
	Filled taxonomy.Lineage          `json:"filled"`
}

func (s *Server) getLineage(c *gin.Context) {
	id := taxonomy.TaxID(c.Param("id"))
	if !s.tree.Contains(id) {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	lineage := s.tree.Lineage(id)

	result := lineageJSON{
		Taxon:  s.taxon(id),
		IDs:    lineage,
		Names:  s.tree.LineageNames(lineage),
		Filled: lineage.FillGaps(),
	}

	for rank := taxonomy.Domain; rank <= taxonomy.Species; rank++ {
		result.Ranks[rank] = rank.String()
	}

	c.JSON(http.StatusOK, result)
}

// getLCA resolves ?ids=1,2,3 with an optional ?policy= (ignore, error,
// root or none) for ids the tree does not know.
func (s *Server) getLCA(c *gin.Context) {
	policy := taxonomy.UnknownIgnore

	if name := c.Query("policy"); name != "" {
		var err error

		if policy, err = taxonomy.ParseUnknownPolicy(name); err != nil {
			c.AbortWithError(http.StatusBadRequest, err) //nolint:errcheck

			return
		}
	}

	var ids []taxonomy.TaxID

	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id != "" {
			ids = append(ids, taxonomy.TaxID(id))
		}
	}

	lca, err := s.tree.LCA(ids, policy)
	if err != nil {
		c.AbortWithError(http.StatusNotFound, err) //nolint:errcheck

		return
	}

	if lca == taxonomy.None {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	c.JSON(http.StatusOK, s.taxon(lca))
}

func (s *Server) getName(c *gin.Context) {
	ids := s.tree.IDsForName(c.Param("name"))
	if len(ids) == 0 {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	taxa := make([]taxonJSON, len(ids))
	for i, id := range ids {
		taxa[i] = s.taxon(id)
	}

	c.JSON(http.StatusOK, taxa)
}

func (s *Server) getChildren(c *gin.Context) {
	s.taxaResponse(c, taxonomy.TaxID(c.Param("id")), s.tree.Children)
}

func (s *Server) getAncestors(c *gin.Context) {
	s.taxaResponse(c, taxonomy.TaxID(c.Param("id")), s.tree.Ancestors)
}

func (s *Server) taxaResponse(c *gin.Context, id taxonomy.TaxID,
	get func(taxonomy.TaxID) []taxonomy.TaxID) {
	if !s.tree.Contains(id) {
		c.AbortWithStatus(http.StatusNotFound)

		return
	}

	ids := get(id)

	taxa := make([]taxonJSON, len(ids))
	for i, tid := range ids {
		taxa[i] = s.taxon(tid)
	}

	c.JSON(http.StatusOK, taxa)
}
