/*******************************************************************************
 * Copyright (c) 2025, 2026 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
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

// package gtdb loads a GTDB reference taxonomy from the bacterial and
// archaeal taxonomy TSVs of a GTDB release, along with the genome accession
// to species index those files define.
package gtdb

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/wtsi-hgi/metapep/taxonomy"
	"vimagination.zapto.org/parser"
)

// RootID is the id of the synthetic root that joins the bacterial and
// archaeal domains; GTDB itself has no taxon above domain.
const RootID taxonomy.TaxID = "Root"

const (
	genbankPrefix = "GB_"
	refseqPrefix  = "RS_"

	rankPrefixLen = 3 // "d__", "p__", etc.
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoFiles            = Error("no taxonomy files supplied")
	ErrMalformedTaxonomy  = Error("malformed taxonomy line")
	ErrMalformedLineage   = Error("lineage element has no rank prefix")
	ErrMalformedMetadata  = Error("malformed metadata line")
	ErrMissingMetadataCol = Error("metadata is missing a required column")
)

// Genomes indexes genome accessions to the species they are assigned to.
// GenBank (GB_) and RefSeq (RS_) prefixes are ignored on lookup, matching
// how GTDB prefixes its accession column.
type Genomes struct {
	species map[string]taxonomy.TaxID
}

// NewGenomes returns a genome index over the given assignments, for callers
// that persist an index and restore it without re-reading the taxonomy
// TSVs. Accessions are indexed as given; prefixes are not re-trimmed.
func NewGenomes(species map[string]taxonomy.TaxID) *Genomes {
	return &Genomes{species: species}
}

// Each calls cb for every indexed genome accession and its species, in no
// particular order.
func (g *Genomes) Each(cb func(genome string, species taxonomy.TaxID)) {
	for genome, species := range g.species {
		cb(genome, species)
	}
}

// Species returns the species id the genome accession is assigned to, or
// None for accessions outside the release.
func (g *Genomes) Species(accession string) taxonomy.TaxID {
	return g.species[trimAccession(accession)]
}

// Contains returns true if the genome accession is part of the release.
func (g *Genomes) Contains(accession string) bool {
	_, ok := g.species[trimAccession(accession)]

	return ok
}

// Len returns the number of indexed genomes.
func (g *Genomes) Len() int {
	return len(g.species)
}

func trimAccession(accession string) string {
	return strings.TrimPrefix(strings.TrimPrefix(accession, genbankPrefix), refseqPrefix)
}

// Load reads GTDB taxonomy TSVs (bac120_taxonomy.tsv and ar53_taxonomy.tsv,
// optionally gzipped) and returns the assembled taxonomy together with the
// genome index. Each line holds a genome accession and its 7-rank lineage;
// the domains of all files are joined under a synthetic root.
func Load(paths ...string) (*taxonomy.Tree, *Genomes, error) {
	if len(paths) == 0 {
		return nil, nil, ErrNoFiles
	}

	b := newBuilder()

	for _, path := range paths {
		if err := b.loadFile(path); err != nil {
			return nil, nil, err
		}
	}

	tree, err := b.tree()

	return tree, b.genomes, err
}

type builder struct {
	genomes   *Genomes
	nodes     map[taxonomy.TaxID]*taxonomy.Node
	order     []taxonomy.TaxID
	children  map[taxonomy.TaxID][]taxonomy.TaxID
	childSeen map[taxonomy.TaxID]map[taxonomy.TaxID]bool
}

func newBuilder() *builder {
	b := &builder{
		genomes:   &Genomes{species: make(map[string]taxonomy.TaxID)},
		nodes:     make(map[taxonomy.TaxID]*taxonomy.Node),
		children:  make(map[taxonomy.TaxID][]taxonomy.TaxID),
		childSeen: make(map[taxonomy.TaxID]map[taxonomy.TaxID]bool),
	}

	b.addNode(&taxonomy.Node{ID: RootID, Name: string(RootID), Rank: taxonomy.NoRank})

	return b
}

func (b *builder) addNode(node *taxonomy.Node) {
	b.nodes[node.ID] = node
	b.order = append(b.order, node.ID)
}

func (b *builder) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close()

	var r io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		if r, err = pgzip.NewReader(f); err != nil {
			return err
		}
	}

	tr := newTaxReader(r)

	for {
		genome, lineage, err := tr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		if err := b.addLineage(genome, lineage); err != nil {
			return err
		}
	}
}

// addLineage indexes the genome against the lineage's species, then walks
// the lineage species-to-domain creating any taxa not yet seen. Taxa
// already present end the walk, since their own ancestors must already be
// present too, but the child link from this lineage is recorded first.
func (b *builder) addLineage(genome string, lineage []taxonomy.TaxID) error {
	if err := validateLineage(lineage); err != nil {
		return err
	}

	b.genomes.species[trimAccession(genome)] = lineage[len(lineage)-1]

	for i := len(lineage) - 1; i >= 0; i-- {
		id := lineage[i]

		if i < len(lineage)-1 {
			b.addChild(id, lineage[i+1])
		}

		if _, ok := b.nodes[id]; ok {
			break
		}

		b.addNode(b.newNode(id, lineage[:i]))
	}

	return nil
}

func validateLineage(lineage []taxonomy.TaxID) error {
	if len(lineage) == 0 {
		return ErrMalformedTaxonomy
	}

	for _, id := range lineage {
		if len(id) <= rankPrefixLen || rankFromID(id) == taxonomy.NoRank {
			return ErrMalformedLineage
		}
	}

	return nil
}

func (b *builder) newNode(id taxonomy.TaxID, above []taxonomy.TaxID) *taxonomy.Node {
	node := &taxonomy.Node{
		ID:        id,
		Name:      nameFromID(id),
		Rank:      rankFromID(id),
		Parent:    RootID,
		Ancestors: make([]taxonomy.TaxID, 0, len(above)+1),
	}

	node.Ancestors = append(node.Ancestors, RootID)
	node.Ancestors = append(node.Ancestors, above...)

	if len(above) > 0 {
		node.Parent = above[len(above)-1]
	} else {
		b.addChild(RootID, id)
	}

	return node
}

func (b *builder) addChild(parent, child taxonomy.TaxID) {
	seen, ok := b.childSeen[parent]
	if !ok {
		seen = make(map[taxonomy.TaxID]bool)
		b.childSeen[parent] = seen
	}

	if seen[child] {
		return
	}

	seen[child] = true
	b.children[parent] = append(b.children[parent], child)
}

func (b *builder) tree() (*taxonomy.Tree, error) {
	t := taxonomy.New(taxonomy.GTDB)

	for _, id := range b.order {
		node := b.nodes[id]
		node.Children = b.children[id]

		if err := t.Add(node); err != nil {
			return nil, err
		}

		if id != RootID {
			t.AddName(node.Name, id)
		}
	}

	if err := t.SetRoot(RootID); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// rankFromID derives a taxon's rank from its "d__" style prefix.
func rankFromID(id taxonomy.TaxID) taxonomy.Rank {
	switch id[0] {
	case 'd':
		return taxonomy.Domain
	case 'p':
		return taxonomy.Phylum
	case 'c':
		return taxonomy.Class
	case 'o':
		return taxonomy.Order
	case 'f':
		return taxonomy.Family
	case 'g':
		return taxonomy.Genus
	case 's':
		return taxonomy.Species
	}

	return taxonomy.NoRank
}

// nameFromID strips the rank prefix, leaving the bare name.
func nameFromID(id taxonomy.TaxID) string {
	return string(id[rankPrefixLen:])
}

type taxReader struct {
	tk parser.Tokeniser
}

func newTaxReader(r io.Reader) *taxReader {
	return &taxReader{tk: parser.NewReaderTokeniser(bufio.NewReader(r))}
}

// Read returns the next genome accession and its semicolon-separated
// lineage, or io.EOF once the input is exhausted.
func (t *taxReader) Read() (string, []taxonomy.TaxID, error) {
	t.tk.AcceptRun("\n")
	t.tk.Get()

	if t.tk.Peek() == -1 {
		return "", nil, io.EOF
	}

	if t.tk.ExceptRun("\t\n") != '\t' {
		return "", nil, ErrMalformedTaxonomy
	}

	genome := t.tk.Get()

	t.tk.Accept("\t")
	t.tk.Get()

	var lineage []taxonomy.TaxID

	for {
		c := t.tk.ExceptRun(";\n")

		lineage = append(lineage, taxonomy.TaxID(t.tk.Get()))

		if c != ';' {
			if c == '\n' {
				t.tk.Next()
				t.tk.Get()
			}

			return genome, lineage, nil
		}

		t.tk.Next()
		t.tk.Get()
	}
}
