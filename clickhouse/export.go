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

package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/wtsi-hgi/metapep/peptide"
	"github.com/wtsi-hgi/metapep/samples"
	"github.com/wtsi-hgi/metapep/taxonomy"
)

const (
	dropPeptidesPartitionQuery = "ALTER TABLE metapep_peptides DROP PARTITION tuple(?, toUUID(?))"
	dropSamplesPartitionQuery  = "ALTER TABLE metapep_samples DROP PARTITION tuple(?, toUUID(?))"

	insertPeptideQuery = "INSERT INTO metapep_peptides " +
		"(project, snapshot_id, sample, sequence, peptide, psm_count, " +
		"confidence, area, de_novo_match_count, de_novo_confidence, " +
		"accessions, taxon_id, taxon_name, domain_name, phylum_name, " +
		"class_name, order_name, family_name, genus_name, species_name, " +
		"kegg_ko, cog_category, source_file)"

	insertSampleQuery = "INSERT INTO metapep_samples " +
		"(project, snapshot_id, sample, db_search_format, " +
		"db_search_confidence_unit, de_novo_format, " +
		"de_novo_confidence_unit, taxonomy_system, function_database)"

	switchSnapshotQuery = "INSERT INTO metapep_projects " +
		"(project, switched_at, active_snapshot, updated_at) " +
		"VALUES (?, now64(3), toUUID(?), ?)"
)

var errProjectRequired = errors.New("clickhouse: project name is required")

// Export ships a project table to ClickHouse as one snapshot keyed by the
// table's id: the snapshot's partitions are dropped first so re-exporting
// the same table is idempotent, the peptide and sample rows are
// batch-inserted, and the project's active snapshot is switched last, so
// readers of the active view never see a partial export.
func (c *Client) Export(project string, table *samples.Table) error {
	if project == "" {
		return errProjectRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout(c.cfg))
	defer cancel()

	if err := ensureSchema(ctx, c.conn); err != nil {
		return err
	}

	if err := c.dropSnapshot(ctx, project, table); err != nil {
		return err
	}

	if err := c.insertPeptides(ctx, project, table); err != nil {
		return err
	}

	if err := c.insertSamples(ctx, project, table); err != nil {
		return err
	}

	return c.switchActiveSnapshot(ctx, project, table)
}

func (c *Client) dropSnapshot(ctx context.Context, project string,
	table *samples.Table) error {
	for _, query := range []string{
		dropPeptidesPartitionQuery, dropSamplesPartitionQuery,
	} {
		if err := c.conn.Exec(ctx, query, project, table.ID.String()); err != nil {
			return fmt.Errorf("clickhouse: failed to drop snapshot partition: %w", err)
		}
	}

	return nil
}

func (c *Client) insertPeptides(ctx context.Context, project string,
	table *samples.Table) error {
	batch, err := c.conn.PrepareBatch(ctx, insertPeptideQuery)
	if err != nil {
		return fmt.Errorf("clickhouse: failed to prepare peptide batch: %w", err)
	}

	for i := range table.Records {
		if err := appendPeptideRow(batch, project, table.ID.String(),
			&table.Records[i]); err != nil {
			return fmt.Errorf("clickhouse: failed to append peptide row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: failed to send peptide batch: %w", err)
	}

	return nil
}

func appendPeptideRow(batch driver.Batch, project, snapshot string,
	r *peptide.Record) error {
	return batch.Append(
		project,
		snapshot,
		r.SampleName,
		r.Sequence,
		r.Peptide,
		uint32(r.PSMCount), //nolint:gosec
		r.Confidence,
		r.Area,
		uint32(r.DeNovoMatchCount), //nolint:gosec
		r.DeNovoConfidence,
		r.Accessions,
		string(r.TaxonID),
		r.TaxonName,
		r.LineageNames[taxonomy.Domain],
		r.LineageNames[taxonomy.Phylum],
		r.LineageNames[taxonomy.Class],
		r.LineageNames[taxonomy.Order],
		r.LineageNames[taxonomy.Family],
		r.LineageNames[taxonomy.Genus],
		r.LineageNames[taxonomy.Species],
		r.Function.KO,
		r.Function.COG,
		r.SourceFile,
	)
}

func (c *Client) insertSamples(ctx context.Context, project string,
	table *samples.Table) error {
	batch, err := c.conn.PrepareBatch(ctx, insertSampleQuery)
	if err != nil {
		return fmt.Errorf("clickhouse: failed to prepare sample batch: %w", err)
	}

	meta := table.Meta

	for _, sample := range table.SampleNames() {
		if err := batch.Append(
			project,
			table.ID.String(),
			sample,
			meta.DBSearchFormat,
			meta.DBSearchConfidenceUnit,
			meta.DeNovoFormat,
			meta.DeNovoConfidenceUnit,
			meta.TaxonomySystem,
			meta.FunctionDatabase,
		); err != nil {
			return fmt.Errorf("clickhouse: failed to append sample row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: failed to send sample batch: %w", err)
	}

	return nil
}

func (c *Client) switchActiveSnapshot(ctx context.Context, project string,
	table *samples.Table) error {
	if err := c.conn.Exec(ctx, switchSnapshotQuery, project,
		table.ID.String(), time.Now()); err != nil {
		return fmt.Errorf("clickhouse: failed to switch active snapshot: %w", err)
	}

	return nil
}
