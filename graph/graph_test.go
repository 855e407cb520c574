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

package graph

import (
	"fmt"
	"sort"
	"testing"
)

type node struct {
	dpid string
}

func (r node) ID() string {
	return fmt.Sprintf("%v", r.dpid)
}

type point struct {
	dpid string
	port uint32
}

func (r point) ID() string {
	return fmt.Sprintf("%v:%v", r.dpid, r.port)
}

func (r point) Vertex() Vertex {
	return node{r.dpid}
}

type link struct {
	points [2]point
	weight float64
}

func (r link) ID() string {
	return fmt.Sprintf("%v:%v/%v:%v", r.points[0].dpid, r.points[0].port, r.points[1].dpid, r.points[1].port)
}

func (r link) Points() [2]Point {
	return [2]Point{r.points[0], r.points[1]}
}

func (r link) Weight() float64 {
	return r.weight
}

func countEnabledEdges(g *Graph) (int, float64) {
	count := 0
	weight := 0.0
	for _, v := range g.arcs {
		if !v.tree {
			continue
		}
		count++
		weight += v.value.Weight()
	}

	return count, weight
}

func newLink(a string, ap uint32, b string, bp uint32, w float64) link {
	return link{
		points: [2]point{{a, ap}, {b, bp}},
		weight: w,
	}
}

func TestAddEdgeToUnknownVertex(t *testing.T) {
	graph := New()
	graph.AddVertex(node{"a"})
	if c, _ := countEnabledEdges(graph); c != 0 {
		t.Fatalf("Unexpected MST: expected len=0, got=%v", c)
	}

	if _, err := graph.AddEdge(newLink("a", 1, "b", 1, 2)); err == nil {
		t.Fatal("Expected error, but not occurred!")
	}
}

func TestPointOnMultipleEdges(t *testing.T) {
	graph := New()
	graph.AddVertex(node{"a"})
	graph.AddVertex(node{"b"})
	graph.AddVertex(node{"c"})
	if _, err := graph.AddEdge(newLink("a", 1, "b", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := graph.AddEdge(newLink("a", 1, "c", 1, 1)); err == nil {
		t.Fatal("Expected error, but not occurred!")
	}
}

func TestRemoveVertex(t *testing.T) {
	graph := New()
	graph.AddVertex(node{"a"})
	graph.AddVertex(node{"b"})
	if _, err := graph.AddEdge(newLink("a", 1, "b", 1, 2)); err != nil {
		t.Fatal(err)
	}
	graph.RemoveVertex(node{"a"})
	if len(graph.sites) != 1 {
		t.Fatalf("Expected node length is 1, got=%v\n", len(graph.sites))
	}
	if len(graph.arcs) != 0 {
		t.Fatalf("Expected edge length is 0, got=%v\n", len(graph.arcs))
	}
	if len(graph.ends) != 0 {
		t.Fatalf("Expected points length is 0, got=%v\n", len(graph.ends))
	}
	if v := graph.sites["b"]; len(v.arcs) != 0 {
		t.Fatalf("Expected edge length is 0, got=%v\n", len(v.arcs))
	}
}

func TestRemoveEdge(t *testing.T) {
	graph := New()
	graph.AddVertex(node{"a"})
	graph.AddVertex(node{"b"})
	e := newLink("a", 1, "b", 1, 2)
	if _, err := graph.AddEdge(e); err != nil {
		t.Fatal(err)
	}
	if !graph.RemoveEdge(point{"a", 1}) {
		t.Fatal("Expected removed=true, got=false")
	}
	if len(graph.arcs) != 0 || len(graph.ends) != 0 {
		t.Fatalf("Expected edges/points length is 0/0, got=%v/%v\n", len(graph.arcs), len(graph.ends))
	}
	if graph.RemoveEdge(point{"a", 1}) {
		t.Fatal("Expected removed=false, got=true")
	}

	added, err := graph.AddEdge(e)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("Expected added=true, got=false")
	}
	// Adding the same edge again is a no-op.
	added, err = graph.AddEdge(e)
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("Expected added=false, got=true")
	}
	a := graph.sites["a"]
	b := graph.sites["b"]
	if len(a.arcs) != 1 || len(b.arcs) != 1 {
		t.Fatalf("Expected # of edges is 1/1, got=%v/%v\n", len(a.arcs), len(b.arcs))
	}
}

func TestMST(t *testing.T) {
	graph := New()
	for _, v := range []string{"a", "b", "c", "d"} {
		graph.AddVertex(node{v})
	}

	edges := []link{
		newLink("a", 1, "b", 1, 1),
		newLink("b", 2, "c", 1, 2),
		newLink("c", 2, "d", 1, 3),
		newLink("d", 2, "a", 2, 10),
		newLink("a", 3, "c", 3, 5),
	}
	for _, v := range edges {
		if _, err := graph.AddEdge(v); err != nil {
			t.Fatal(err)
		}
	}

	c, w := countEnabledEdges(graph)
	if c != 3 || w != 6 {
		t.Fatalf("Unexpected MST: expected=3/6, got=%v/%v", c, w)
	}
	if graph.IsEnabledPoint(point{"d", 2}) {
		t.Fatal("Expected disabled point d:2, got enabled")
	}
	if !graph.IsEnabledPoint(point{"c", 2}) {
		t.Fatal("Expected enabled point c:2, got disabled")
	}
	if !graph.IsEdge(point{"d", 2}) {
		t.Fatal("Expected d:2 is on an edge")
	}
	if graph.IsEdge(point{"d", 9}) {
		t.Fatal("Expected d:9 is not on an edge")
	}
}

func TestComponents(t *testing.T) {
	graph := New()
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		graph.AddVertex(node{v})
	}
	if _, err := graph.AddEdge(newLink("a", 1, "b", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := graph.AddEdge(newLink("c", 1, "d", 1, 1)); err != nil {
		t.Fatal(err)
	}

	got := make([]string, 0)
	for _, set := range graph.Components() {
		ids := make([]string, 0)
		for _, v := range set {
			ids = append(ids, v.ID())
		}
		sort.Strings(ids)
		got = append(got, fmt.Sprintf("%v", ids))
	}
	sort.Strings(got)
	expected := []string{"[a b]", "[c d]", "[e]"}
	if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", expected) {
		t.Fatalf("Unexpected components: expected=%v, got=%v", expected, got)
	}

	graph.RemoveEdge(point{"c", 1})
	if n := len(graph.Components()); n != 4 {
		t.Fatalf("Expected 4 components, got=%v", n)
	}
}

func TestFindPath(t *testing.T) {
	graph := New()
	for _, v := range []string{"a", "b", "c", "d"} {
		graph.AddVertex(node{v})
	}
	for _, v := range []link{
		newLink("a", 1, "b", 1, 1),
		newLink("b", 2, "c", 1, 1),
		newLink("a", 2, "c", 2, 5),
	} {
		if _, err := graph.AddEdge(v); err != nil {
			t.Fatal(err)
		}
	}

	path := graph.FindPath(node{"a"}, node{"c"})
	if len(path) != 2 {
		t.Fatalf("Expected path length is 2, got=%v", len(path))
	}
	if path[0].V.ID() != "a" || path[0].E.ID() != "a:1/b:1" {
		t.Fatalf("Unexpected first hop: %v via %v", path[0].V.ID(), path[0].E.ID())
	}
	if path[1].V.ID() != "b" || path[1].E.ID() != "b:2/c:1" {
		t.Fatalf("Unexpected second hop: %v via %v", path[1].V.ID(), path[1].E.ID())
	}

	if path := graph.FindPath(node{"a"}, node{"a"}); len(path) != 0 {
		t.Fatalf("Expected empty path to itself, got=%v", path)
	}
	if path := graph.FindPath(node{"a"}, node{"d"}); len(path) != 0 {
		t.Fatalf("Expected empty path to an isolated vertex, got=%v", path)
	}
}

func TestFindPathAfterEdgeRemoval(t *testing.T) {
	graph := New()
	for _, v := range []string{"a", "b", "c"} {
		graph.AddVertex(node{v})
	}
	for _, v := range []link{
		newLink("a", 1, "b", 1, 1),
		newLink("b", 2, "c", 1, 1),
		newLink("a", 2, "c", 2, 5),
	} {
		if _, err := graph.AddEdge(v); err != nil {
			t.Fatal(err)
		}
	}
	if graph.IsEnabledPoint(point{"a", 2}) {
		t.Fatal("Expected disabled point a:2, got enabled")
	}

	graph.RemoveEdge(point{"b", 1})
	if !graph.IsEnabledPoint(point{"a", 2}) {
		t.Fatal("Expected enabled point a:2 after removing a:1/b:1, got disabled")
	}
	path := graph.FindPath(node{"a"}, node{"b"})
	if len(path) != 2 {
		t.Fatalf("Expected path length is 2, got=%v", len(path))
	}
	if path[0].V.ID() != "a" || path[0].E.ID() != "a:2/c:2" {
		t.Fatalf("Unexpected first hop: %v via %v", path[0].V.ID(), path[0].E.ID())
	}
	if path[1].V.ID() != "c" || path[1].E.ID() != "b:2/c:1" {
		t.Fatalf("Unexpected second hop: %v via %v", path[1].V.ID(), path[1].E.ID())
	}

	if path := graph.FindPath(node{"a"}, node{"x"}); len(path) != 0 {
		t.Fatalf("Expected empty path to an unknown vertex, got=%v", path)
	}
}
