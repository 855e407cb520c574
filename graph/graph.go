/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package graph keeps an undirected weighted multigraph of switches and the
// spanning forest that decides which of its edges may carry traffic.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("graph")
)

// Vertex is a node of the graph, such as a switch.
type Vertex interface {
	ID() string
}

// Point is an attachment spot on a vertex, such as a switch port. Two vertexies
// may be joined by several edges as long as each edge uses its own points.
type Point interface {
	ID() string
	Vertex() Vertex
}

// Edge joins two points and has a weight used by the spanning forest.
type Edge interface {
	ID() string
	Points() [2]Point
	Weight() float64
}

type arc struct {
	value Edge

	// tree is true if this arc belongs to the spanning forest.
	tree bool
}

func (r *arc) opposite(id string) Vertex {
	p := r.value.Points()
	if p[0].Vertex().ID() == id {
		return p[1].Vertex()
	}
	return p[0].Vertex()
}

type site struct {
	value Vertex
	arcs  map[string]*arc
}

type Graph struct {
	mutex sync.RWMutex
	sites map[string]*site
	arcs  map[string]*arc

	// ends maps a point ID to the arc that uses it.
	ends map[string]*arc

	// component maps a vertex ID to the ID of the smallest vertex connected with it.
	component map[string]string
}

func New() *Graph {
	return &Graph{
		sites:     make(map[string]*site),
		arcs:      make(map[string]*arc),
		ends:      make(map[string]*arc),
		component: make(map[string]string),
	}
}

func (r *Graph) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.arcs))
	for id := range r.arcs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "Edge %v (spanning=%v)\n", id, r.arcs[id].tree)
	}

	return b.String()
}

func (r *Graph) AddVertex(v Vertex) {
	if v == nil {
		panic("nil vertex")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.sites[v.ID()]; ok {
		return
	}
	r.sites[v.ID()] = &site{value: v, arcs: make(map[string]*arc)}
	r.span()
}

// RemoveVertex removes v and every edge that touches it.
func (r *Graph) RemoveVertex(v Vertex) {
	if v == nil {
		panic("nil vertex")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, ok := r.sites[v.ID()]
	if !ok {
		return
	}
	for _, a := range s.arcs {
		r.detach(a)
	}
	delete(r.sites, v.ID())
	r.span()
}

// AddEdge adds e between two known vertexies. It returns false without an error
// if the graph already has e.
func (r *Graph) AddEdge(e Edge) (added bool, err error) {
	if e == nil {
		panic("nil edge")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.arcs[e.ID()]; ok {
		return false, nil
	}

	points := e.Points()
	ends := [2]*site{}
	for i, p := range points {
		if p.Vertex() == nil {
			panic("edge on a nil vertex")
		}
		s, ok := r.sites[p.Vertex().ID()]
		if !ok {
			return false, errors.Errorf("edge %v touches unknown vertex %v", e.ID(), p.Vertex().ID())
		}
		if _, ok := r.ends[p.ID()]; ok {
			return false, errors.Errorf("point %v is already on an edge", p.ID())
		}
		ends[i] = s
	}

	a := &arc{value: e}
	r.arcs[e.ID()] = a
	for i, p := range points {
		ends[i].arcs[e.ID()] = a
		r.ends[p.ID()] = a
	}
	r.span()
	logger.Debugf("edge %v added", e.ID())

	return true, nil
}

// RemoveEdge removes the edge that p is on.
func (r *Graph) RemoveEdge(p Point) (removed bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.ends[p.ID()]
	if !ok {
		return false
	}
	r.detach(a)
	r.span()
	logger.Debugf("edge %v removed", a.value.ID())

	return true
}

func (r *Graph) detach(a *arc) {
	id := a.value.ID()
	for _, p := range a.value.Points() {
		if s, ok := r.sites[p.Vertex().ID()]; ok {
			delete(s.arcs, id)
		}
		delete(r.ends, p.ID())
	}
	delete(r.arcs, id)
}

// IsEdge returns whether p is on an edge.
func (r *Graph) IsEdge(p Point) bool {
	if p == nil {
		panic("nil point")
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.ends[p.ID()]
	return ok
}

// IsEnabledPoint returns whether p is on an edge of the spanning forest.
func (r *Graph) IsEnabledPoint(p Point) bool {
	if p == nil {
		panic("nil point")
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	a, ok := r.ends[p.ID()]
	return ok && a.tree
}

// Components returns the sets of connected vertexies. An isolated vertex is a set of its own.
func (r *Graph) Components() [][]Vertex {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	index := make(map[string]int)
	result := make([][]Vertex, 0)
	for id, s := range r.sites {
		root := r.component[id]
		i, ok := index[root]
		if !ok {
			i = len(result)
			index[root] = i
			result = append(result, nil)
		}
		result[i] = append(result[i], s.value)
	}

	return result
}

// forest is a disjoint-set of vertex IDs. The representative of a set is its smallest ID.
type forest map[string]string

func (f forest) find(id string) string {
	for f[id] != id {
		f[id] = f[f[id]]
		id = f[id]
	}
	return id
}

func (f forest) union(a, b string) bool {
	ra, rb := f.find(a), f.find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	f[rb] = ra
	return true
}

// span recalculates the minimum spanning forest with Kruskal's algorithm. Equal
// weights are ordered by edge ID so the result does not depend on map order.
// The caller must hold the write lock.
func (r *Graph) span() {
	arcs := make([]*arc, 0, len(r.arcs))
	for _, a := range r.arcs {
		a.tree = false
		arcs = append(arcs, a)
	}
	sort.Slice(arcs, func(i, j int) bool {
		wi, wj := arcs[i].value.Weight(), arcs[j].value.Weight()
		if wi != wj {
			return wi < wj
		}
		return arcs[i].value.ID() < arcs[j].value.ID()
	})

	f := make(forest, len(r.sites))
	for id := range r.sites {
		f[id] = id
	}
	joined := 0
	for _, a := range arcs {
		if joined == len(r.sites)-1 {
			break
		}
		p := a.value.Points()
		if f.union(p[0].Vertex().ID(), p[1].Vertex().ID()) {
			a.tree = true
			joined++
		}
	}

	component := make(map[string]string, len(f))
	for id := range f {
		component[id] = f.find(id)
	}
	r.component = component
}

// Path is a hop that leaves vertex V through edge E.
type Path struct {
	V Vertex
	E Edge
}

// FindPath returns the hops from src to dst over the spanning forest. The result
// is empty if src and dst are the same vertex or are not connected.
func (r *Graph) FindPath(src, dst Vertex) []Path {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if _, ok := r.sites[src.ID()]; !ok {
		return []Path{}
	}
	if src.ID() == dst.ID() || r.component[src.ID()] != r.component[dst.ID()] {
		return []Path{}
	}

	// via maps a reached vertex ID to the hop that reached it.
	via := map[string]Path{src.ID(): {}}
	queue := []*site{r.sites[src.ID()]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.value.ID() == dst.ID() {
			break
		}
		for _, a := range cur.arcs {
			if !a.tree {
				continue
			}
			next := a.opposite(cur.value.ID())
			if _, ok := via[next.ID()]; ok {
				continue
			}
			via[next.ID()] = Path{V: cur.value, E: a.value}
			queue = append(queue, r.sites[next.ID()])
		}
	}

	hops := 0
	for id := dst.ID(); id != src.ID(); id = via[id].V.ID() {
		if _, ok := via[id]; !ok {
			return []Path{}
		}
		hops++
	}
	result := make([]Path, hops)
	for id := dst.ID(); id != src.ID(); id = via[id].V.ID() {
		hops--
		result[hops] = via[id]
	}

	return result
}
