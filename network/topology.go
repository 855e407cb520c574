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

package network

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/superkkt/forwarder/forwarding"
	"github.com/superkkt/forwarder/graph"

	"github.com/pkg/errors"
)

type vertex struct {
	dpid uint64
}

func (r vertex) ID() string {
	return strconv.FormatUint(r.dpid, 10)
}

type point struct {
	dpid uint64
	port uint16
}

func (r point) ID() string {
	return fmt.Sprintf("%v:%v", r.dpid, r.port)
}

func (r point) Vertex() graph.Vertex {
	return vertex{r.dpid}
}

type edge struct {
	points [2]point
}

func (r edge) ID() string {
	return fmt.Sprintf("%v/%v", r.points[0].ID(), r.points[1].ID())
}

func (r edge) Points() [2]graph.Point {
	return [2]graph.Point{r.points[0], r.points[1]}
}

func (r edge) Weight() float64 {
	return 1
}

type Port struct {
	DPID   uint64 `json:"dpid" mapstructure:"dpid"`
	Number uint16 `json:"port" mapstructure:"port"`
}

func (r Port) String() string {
	return fmt.Sprintf("%v:%v", r.DPID, r.Number)
}

// LinkParam is a bi-directional link between two switch ports.
type LinkParam struct {
	A Port `json:"a" mapstructure:"a"`
	B Port `json:"b" mapstructure:"b"`
}

func (r LinkParam) validate() error {
	if r.A.DPID == r.B.DPID {
		return errors.New("link between same switch")
	}
	if r.A.Number == 0 || r.A.Number > 0xff00 || r.B.Number == 0 || r.B.Number > 0xff00 {
		return errors.New("invalid port number")
	}

	return nil
}

// normalize returns r whose A has the lower DPID.
func (r LinkParam) normalize() LinkParam {
	if r.A.DPID > r.B.DPID {
		return LinkParam{A: r.B, B: r.A}
	}
	return r
}

func (r LinkParam) ID() string {
	v := r.normalize()
	return fmt.Sprintf("%v/%v", v.A, v.B)
}

func (r LinkParam) edge() edge {
	v := r.normalize()
	return edge{
		points: [2]point{
			{dpid: v.A.DPID, port: v.A.Number},
			{dpid: v.B.DPID, port: v.B.Number},
		},
	}
}

type Link struct {
	ID string `json:"id"`
	LinkParam
	// Active is true if both ends of the link are connected and up.
	Active bool `json:"active"`
	// Enabled is true if the link belongs to the spanning tree.
	Enabled bool `json:"enabled"`
}

// Topology keeps the connected switches and the links among them.
type Topology struct {
	mutex     sync.RWMutex
	graph     *graph.Graph
	switches  map[uint64]*Switch
	links     map[string]LinkParam
	islands   map[uint64]forwarding.IslandID
	listeners []func()
}

func NewTopology() *Topology {
	return &Topology{
		graph:    graph.New(),
		switches: make(map[uint64]*Switch),
		links:    make(map[string]LinkParam),
		islands:  make(map[uint64]forwarding.IslandID),
	}
}

func (r *Topology) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := fmt.Sprintf("# of switches=%v, # of links=%v, islands=%v\n", len(r.switches), len(r.links), r.islands)
	return v + r.graph.String()
}

// Subscribe registers fn that will be called whenever the topology is changed.
func (r *Topology) Subscribe(fn func()) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.listeners = append(r.listeners, fn)
}

func (r *Topology) notify() {
	r.mutex.RLock()
	listeners := append([]func(){}, r.listeners...)
	r.mutex.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func (r *Topology) addSwitch(sw *Switch) error {
	r.mutex.Lock()
	if _, ok := r.switches[sw.ID()]; ok {
		r.mutex.Unlock()
		return fmt.Errorf("duplicated switch DPID: %v", sw.ID())
	}
	r.switches[sw.ID()] = sw
	r.graph.AddVertex(vertex{sw.ID()})
	r.reconcile()
	r.mutex.Unlock()

	logger.Infof("added a switch to the topology: dpid=%v", sw.ID())
	r.notify()

	return nil
}

func (r *Topology) removeSwitch(sw *Switch) {
	r.mutex.Lock()
	// Ignore if it is not the one registered.
	if v, ok := r.switches[sw.ID()]; !ok || v != sw {
		r.mutex.Unlock()
		return
	}
	delete(r.switches, sw.ID())
	r.graph.RemoveVertex(vertex{sw.ID()})
	r.reconcile()
	r.mutex.Unlock()

	logger.Infof("removed a switch from the topology: dpid=%v", sw.ID())
	r.notify()
}

// portChanged updates the links on the port whose status has been changed.
func (r *Topology) portChanged() {
	r.mutex.Lock()
	r.reconcile()
	r.mutex.Unlock()

	r.notify()
}

func (r *Topology) lookupSwitch(dpid uint64) (*Switch, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sw, ok := r.switches[dpid]
	return sw, ok
}

func (r *Topology) Switch(dpid uint64) (forwarding.Switch, bool) {
	sw, ok := r.lookupSwitch(dpid)
	if !ok {
		return nil, false
	}

	return sw, true
}

// Switches returns the connected switches in ascending order of the DPID.
func (r *Topology) Switches() []*Switch {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Switch, 0, len(r.switches))
	for _, v := range r.switches {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })

	return result
}

func (r *Topology) AddLink(p LinkParam) (id string, err error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	p = p.normalize()

	r.mutex.Lock()
	id = p.ID()
	if _, ok := r.links[id]; ok {
		r.mutex.Unlock()
		return "", fmt.Errorf("duplicated link: %v", id)
	}
	for _, v := range r.links {
		if v.A == p.A || v.A == p.B || v.B == p.A || v.B == p.B {
			r.mutex.Unlock()
			return "", fmt.Errorf("port is already used by link %v", v.ID())
		}
	}
	r.links[id] = p
	r.reconcile()
	r.mutex.Unlock()

	logger.Infof("added a link: id=%v", id)
	r.notify()

	return id, nil
}

func (r *Topology) RemoveLink(id string) (removed bool) {
	r.mutex.Lock()
	p, ok := r.links[id]
	if !ok {
		r.mutex.Unlock()
		return false
	}
	delete(r.links, id)
	r.graph.RemoveEdge(p.edge().points[0])
	r.reconcile()
	r.mutex.Unlock()

	logger.Infof("removed a link: id=%v", id)
	r.notify()

	return true
}

// Links returns the configured links in ascending order of the ID.
func (r *Topology) Links() []Link {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]Link, 0, len(r.links))
	for id, p := range r.links {
		e := p.edge()
		result = append(result, Link{
			ID:        id,
			LinkParam: p,
			Active:    r.graph.IsEdge(e.points[0]),
			Enabled:   r.graph.IsEnabledPoint(e.points[0]),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// isUp returns whether the port is connected and up. A caller should lock the mutex.
func (r *Topology) isUp(p Port) bool {
	sw, ok := r.switches[p.DPID]
	if !ok {
		return false
	}
	port, ok := sw.Port(p.Number)
	if !ok {
		return false
	}

	return !port.IsPortDown() && !port.IsLinkDown()
}

// reconcile synchronizes the graph edges with the configured links, and then
// recalculates the islands. A caller should lock the mutex.
func (r *Topology) reconcile() {
	for id, p := range r.links {
		e := p.edge()
		if !r.isUp(p.A) || !r.isUp(p.B) {
			r.graph.RemoveEdge(e.points[0])
			continue
		}
		if _, err := r.graph.AddEdge(e); err != nil {
			logger.Warningf("failed to activate a link: id=%v, err=%v", id, err)
		}
	}

	islands := make(map[uint64]forwarding.IslandID)
	for _, set := range r.graph.Components() {
		lowest := set[0].(vertex).dpid
		for _, v := range set {
			if dpid := v.(vertex).dpid; dpid < lowest {
				lowest = dpid
			}
		}
		for _, v := range set {
			islands[v.(vertex).dpid] = forwarding.IslandID(lowest)
		}
	}
	r.islands = islands
}

func (r *Topology) IslandOf(dpid uint64) (forwarding.IslandID, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.islands[dpid]
	return v, ok
}

// IsInterSwitchPort returns whether the port is an active end of a link between switches.
func (r *Topology) IsInterSwitchPort(dpid uint64, port uint16) bool {
	return r.graph.IsEdge(point{dpid, port})
}

// IsIngressBroadcastAllowed returns false if the port is an end of a link
// blocked by the spanning tree.
func (r *Topology) IsIngressBroadcastAllowed(dpid uint64, port uint16) bool {
	p := point{dpid, port}
	if !r.graph.IsEdge(p) {
		// Host port.
		return true
	}

	return r.graph.IsEnabledPoint(p)
}

// Route returns the path from src to dst over the spanning tree. It returns false
// if src and dst are same or there is no path between them.
func (r *Topology) Route(src, dst uint64) (*forwarding.Route, bool) {
	if src == dst {
		return nil, false
	}

	path := r.graph.FindPath(vertex{src}, vertex{dst})
	if len(path) == 0 {
		return nil, false
	}

	route := &forwarding.Route{
		Src:   src,
		Dst:   dst,
		Links: make([]forwarding.Link, 0, len(path)),
	}
	for _, v := range path {
		points := v.E.Points()
		egress, ingress := points[0].(point), points[1].(point)
		if egress.dpid != v.V.(vertex).dpid {
			egress, ingress = ingress, egress
		}
		route.Links = append(route.Links, forwarding.Link{
			Src: forwarding.SwitchPort{Switch: egress.dpid, Port: egress.port},
			Dst: forwarding.SwitchPort{Switch: ingress.dpid, Port: ingress.port},
		})
	}

	return route, true
}
