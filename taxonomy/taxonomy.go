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

// package taxonomy provides an in-memory taxonomic reference tree with
// lineage and lowest common ancestor queries, supporting both the NCBI and
// GTDB reference systems behind a single interface.
package taxonomy

import (
	"fmt"
	"strings"
	"sync"
)

// TaxID is the identifier of a taxon within a reference system. NCBI ids are
// numeric strings ("562"); GTDB ids are rank-prefixed names ("s__Escherichia
// coli"). The zero value None marks an absent taxon and is never a valid id
// in either system.
type TaxID string

// None is the explicit "no taxon" marker used throughout this package in
// place of in-band sentinels.
const None TaxID = ""

// System identifies which reference taxonomy a Tree was loaded from.
type System uint8

const (
	NCBI System = iota
	GTDB
)

// String returns the conventional name of the reference system.
func (s System) String() string {
	if s == GTDB {
		return "GTDB"
	}

	return "NCBI"
}

// ParseSystem converts a reference system name, case-insensitively, to a
// System.
func ParseSystem(name string) (System, error) {
	switch strings.ToLower(name) {
	case "ncbi":
		return NCBI, nil
	case "gtdb":
		return GTDB, nil
	}

	return NCBI, ErrUnknownSystem
}

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownTaxon    = Error("taxon id not present in taxonomy")
	ErrInvalidRank     = Error("rank is not a standard lineage rank")
	ErrInvalidPolicy   = Error("invalid policy")
	ErrDuplicateTaxon  = Error("taxon id defined more than once")
	ErrMissingParent   = Error("taxon refers to an undefined parent")
	ErrCyclicParentage = Error("taxonomy parent links form a cycle")
	ErrNoRoot          = Error("taxonomy has no root node")
	ErrUnknownInLCA    = Error("lca input contains unknown taxon ids")
	ErrUnknownSystem   = Error("unknown reference system")
	ErrUnknownRankName = Error("unknown rank name")
)

// Node is a single taxon in a Tree. Ancestors holds the full path from the
// root down to, but excluding, the node itself; it includes taxa of
// non-standard rank.
type Node struct {
	ID        TaxID
	Name      string
	Rank      Rank
	Parent    TaxID
	Ancestors []TaxID
	Children  []TaxID
}

// Tree is a taxonomic reference tree. It is built single-threaded by one of
// the loader packages and is safe for concurrent reads afterwards; lineage
// results are memoised per tree.
type Tree struct {
	system System
	root   TaxID
	nodes  map[TaxID]*Node
	names  map[string][]TaxID

	mu       sync.RWMutex
	lineages map[TaxID]Lineage
}

// New returns an empty Tree for the given reference system.
func New(system System) *Tree {
	return &Tree{
		system:   system,
		nodes:    make(map[TaxID]*Node),
		names:    make(map[string][]TaxID),
		lineages: make(map[TaxID]Lineage),
	}
}

// System returns the reference system this tree was loaded from.
func (t *Tree) System() System {
	return t.system
}

// Root returns the id of the root node, or None if none has been set.
func (t *Tree) Root() TaxID {
	return t.root
}

// Len returns the number of taxa in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// SetRoot records which node is the root of the tree. The root must have
// been added first.
func (t *Tree) SetRoot(id TaxID) error {
	if _, ok := t.nodes[id]; !ok {
		return ErrNoRoot
	}

	t.root = id

	return nil
}

// Add inserts a node into the tree, erroring if its id is already taken.
// Loaders are expected to have filled in Ancestors and Children themselves.
func (t *Tree) Add(node *Node) error {
	if _, ok := t.nodes[node.ID]; ok {
		return ErrDuplicateTaxon
	}

	t.nodes[node.ID] = node

	return nil
}

const (
	walkInProgress uint8 = iota + 1
	walkCleared
)

// Validate checks the structure of an assembled tree: every non-root node's
// parent must itself be a node of the tree, and parent links must always
// lead back to a node with no parent rather than forming a cycle. Loaders
// call this once assembly is complete.
func (t *Tree) Validate() error {
	for id, node := range t.nodes {
		if node.Parent != None && !t.Contains(node.Parent) {
			return fmt.Errorf("taxon %s: %w", id, ErrMissingParent)
		}
	}

	state := make(map[TaxID]uint8, len(t.nodes))

	for id := range t.nodes {
		if err := t.walkToRoot(id, state); err != nil {
			return err
		}
	}

	return nil
}

// walkToRoot follows parent links upwards, marking the nodes passed so each
// is walked at most once across the whole validation. Re-entering a node
// still on the current walk means the links loop.
func (t *Tree) walkToRoot(id TaxID, state map[TaxID]uint8) error {
	var path []TaxID

	for id != None && state[id] == 0 {
		state[id] = walkInProgress
		path = append(path, id)
		id = t.nodes[id].Parent
	}

	if id != None && state[id] == walkInProgress {
		return fmt.Errorf("taxon %s: %w", id, ErrCyclicParentage)
	}

	for _, walked := range path {
		state[walked] = walkCleared
	}

	return nil
}

// AddName registers a name for the given id in the name index. Multiple ids
// may share a name; they are recorded in insertion order.
func (t *Tree) AddName(name string, id TaxID) {
	t.names[name] = append(t.names[name], id)
}

// AddNameIfAbsent registers a name for the given id only when the name text
// is not already in the index, allowing loaders to give primary names
// priority over synonyms.
func (t *Tree) AddNameIfAbsent(name string, id TaxID) {
	if _, ok := t.names[name]; ok {
		return
	}

	t.names[name] = []TaxID{id}
}

// Contains returns true if the id belongs to a taxon in this tree. None is
// never contained.
func (t *Tree) Contains(id TaxID) bool {
	_, ok := t.nodes[id]

	return ok
}

// Node returns the node for the given id, or nil if the id is unknown.
func (t *Tree) Node(id TaxID) *Node {
	return t.nodes[id]
}

// Name returns the name of the given taxon, or "" if the id is unknown.
func (t *Tree) Name(id TaxID) string {
	if node, ok := t.nodes[id]; ok {
		return node.Name
	}

	return ""
}

// RankOf returns the rank of the given taxon, or NoRank if the id is
// unknown. Use Contains to distinguish an unknown id from a known taxon of
// non-standard rank.
func (t *Tree) RankOf(id TaxID) Rank {
	if node, ok := t.nodes[id]; ok {
		return node.Rank
	}

	return NoRank
}

// IDsForName returns every taxon id registered under the given name, in
// registration order, or nil if the name is unknown.
func (t *Tree) IDsForName(name string) []TaxID {
	return t.names[name]
}

// IDForName returns the single taxon id registered under the given name, or
// None when the name is unknown or shared by more than one taxon. Use
// IDsForName when ambiguous names need resolving.
func (t *Tree) IDForName(name string) TaxID {
	ids := t.names[name]
	if len(ids) != 1 {
		return None
	}

	return ids[0]
}

// Ancestors returns the full path from the root down to and including the
// given taxon, covering taxa of non-standard rank. Unknown ids give a nil
// path.
func (t *Tree) Ancestors(id TaxID) []TaxID {
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}

	path := make([]TaxID, 0, len(node.Ancestors)+1)
	path = append(path, node.Ancestors...)

	return append(path, id)
}

// EachNode calls cb for every node in the tree, in no particular order.
func (t *Tree) EachNode(cb func(*Node)) {
	for _, node := range t.nodes {
		cb(node)
	}
}

// EachName calls cb for every name in the name index with the ids
// registered under it, in no particular order.
func (t *Tree) EachName(cb func(string, []TaxID)) {
	for name, ids := range t.names {
		cb(name, ids)
	}
}

// Children returns the direct children of the given taxon.
func (t *Tree) Children(id TaxID) []TaxID {
	if node, ok := t.nodes[id]; ok {
		return node.Children
	}

	return nil
}

// Descendants returns the given taxon and everything below it, in
// breadth-first order, visiting each taxon once even if child links loop.
// Unknown ids give a nil result.
func (t *Tree) Descendants(id TaxID) []TaxID {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}

	var all []TaxID

	queue := []TaxID{id}
	seen := map[TaxID]bool{id: true}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		all = append(all, next)

		node, ok := t.nodes[next]
		if !ok {
			continue
		}

		for _, child := range node.Children {
			if !seen[child] {
				seen[child] = true

				queue = append(queue, child)
			}
		}
	}

	return all
}
