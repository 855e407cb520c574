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
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/superkkt/forwarder/forwarding"
)

// hostShards is the number of the maps a snapshot is split into. A change to a host
// copies only the shard that holds it.
const hostShards = 256

type IslandResolver interface {
	IslandOf(dpid uint64) (forwarding.IslandID, bool)
}

type location struct {
	dpid      uint64
	port      uint16
	island    forwarding.IslandID
	hasIsland bool

	// lastSeen is UnixNano of the last sighting. It is shared by every snapshot
	// that carries this location, so a refresh does not publish a new snapshot.
	lastSeen *atomic.Int64
}

func (r location) at(dpid uint64, port uint16) bool {
	return r.dpid == dpid && r.port == port
}

type host struct {
	mac       net.HardwareAddr
	locations []location
}

func (r host) find(dpid uint64, port uint16) (location, bool) {
	for _, v := range r.locations {
		if v.at(dpid, port) {
			return v, true
		}
	}
	return location{}, false
}

// hostSnapshot is an immutable set of the hosts keyed by the raw MAC address.
// Neither the array nor the maps may be modified after it is published.
type hostSnapshot struct {
	shards [hostShards]map[string]host
}

func shardOf(key string) int {
	if len(key) == 0 {
		return 0
	}
	return int(key[len(key)-1])
}

func (r *hostSnapshot) lookup(key string) (host, bool) {
	h, ok := r.shards[shardOf(key)][key]
	return h, ok
}

func (r *hostSnapshot) Device(mac net.HardwareAddr) (forwarding.Device, bool) {
	h, ok := r.lookup(string(mac))
	if !ok {
		return forwarding.Device{}, false
	}

	locations := append([]location(nil), h.locations...)
	seen := make([]int64, len(locations))
	for i, v := range locations {
		seen[i] = v.lastSeen.Load()
	}
	// Most recently seen first.
	sort.Stable(byLastSeen{locations, seen})

	aps := make([]forwarding.AttachmentPoint, len(locations))
	for i, v := range locations {
		aps[i] = forwarding.AttachmentPoint{
			Switch:    v.dpid,
			Port:      v.port,
			Island:    v.island,
			HasIsland: v.hasIsland,
		}
	}

	return forwarding.Device{MAC: h.mac, AttachmentPoints: aps}, true
}

type byLastSeen struct {
	locations []location
	seen      []int64
}

func (r byLastSeen) Len() int           { return len(r.locations) }
func (r byLastSeen) Less(i, j int) bool { return r.seen[i] > r.seen[j] }
func (r byLastSeen) Swap(i, j int) {
	r.locations[i], r.locations[j] = r.locations[j], r.locations[i]
	r.seen[i], r.seen[j] = r.seen[j], r.seen[i]
}

// SortedAttachmentPoints returns the attachment points of d in ascending order of
// the island ID. The points whose island is unknown come last.
func (r *hostSnapshot) SortedAttachmentPoints(d forwarding.Device) []forwarding.AttachmentPoint {
	result := append([]forwarding.AttachmentPoint(nil), d.AttachmentPoints...)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].HasIsland != result[j].HasIsland {
			return result[i].HasIsland
		}
		return result[i].Island < result[j].Island
	})

	return result
}

// HostTable tracks the locations of the hosts learned from the packet-in events.
type HostTable struct {
	// Serializes the writers. Readers only load the snapshot pointer.
	mutex    sync.Mutex
	snapshot atomic.Pointer[hostSnapshot]
	resolver IslandResolver
	timeout  time.Duration
	now      func() time.Time
}

func NewHostTable(resolver IslandResolver, timeout time.Duration) *HostTable {
	if resolver == nil {
		panic("nil island resolver")
	}

	v := &HostTable{
		resolver: resolver,
		timeout:  timeout,
		now:      time.Now,
	}
	empty := new(hostSnapshot)
	for i := range empty.shards {
		empty.shards[i] = make(map[string]host)
	}
	v.snapshot.Store(empty)

	return v
}

func (r *HostTable) Snapshot() forwarding.DeviceSnapshot {
	return r.snapshot.Load()
}

// rewrite publishes a new snapshot in which every shard is replaced by the
// result of fn. fn returns nil to keep a shard as it is. A caller should lock the mutex.
func (r *HostTable) rewrite(fn func(shard map[string]host) map[string]host) {
	next := *r.snapshot.Load()
	changed := false
	for i, shard := range next.shards {
		if v := fn(shard); v != nil {
			next.shards[i] = v
			changed = true
		}
	}
	if changed {
		r.snapshot.Store(&next)
	}
}

func (r *HostTable) resolve(dpid uint64, port uint16) location {
	island, ok := r.resolver.IslandOf(dpid)
	return location{
		dpid:      dpid,
		port:      port,
		island:    island,
		hasIsland: ok,
	}
}

// Learn records that mac has been seen on the port of the switch. A host keeps
// at most one location per island. Seeing a host again on a known location only
// refreshes its timestamp.
func (r *HostTable) Learn(dpid uint64, port uint16, mac net.HardwareAddr) {
	now := r.now().UnixNano()
	key := string(mac)
	if h, ok := r.snapshot.Load().lookup(key); ok {
		if loc, ok := h.find(dpid, port); ok {
			loc.lastSeen.Store(now)
			return
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	cur := r.snapshot.Load()
	old, known := cur.lookup(key)
	// Another writer may have added the same location in the meantime.
	if loc, ok := old.find(dpid, port); ok {
		loc.lastSeen.Store(now)
		return
	}
	if !known {
		logger.Debugf("learned a new host: mac=%v, dpid=%v, port=%v", mac, dpid, port)
	}

	loc := r.resolve(dpid, port)
	loc.lastSeen = new(atomic.Int64)
	loc.lastSeen.Store(now)
	locations := []location{loc}
	for _, v := range old.locations {
		// The host has moved within the island.
		if loc.hasIsland && v.hasIsland && v.island == loc.island {
			logger.Infof("host moved: mac=%v, from=%v:%v, to=%v:%v", mac, v.dpid, v.port, dpid, port)
			continue
		}
		locations = append(locations, v)
	}

	i := shardOf(key)
	shard := make(map[string]host, len(cur.shards[i])+1)
	for k, v := range cur.shards[i] {
		shard[k] = v
	}
	shard[key] = host{mac: append(net.HardwareAddr(nil), mac...), locations: locations}

	next := *cur
	next.shards[i] = shard
	r.snapshot.Store(&next)
}

// filter removes the locations for which keep returns false. Only the shards
// that lose a location are copied. A caller should lock the mutex.
func (r *HostTable) filter(keep func(location) bool) {
	r.rewrite(func(shard map[string]host) map[string]host {
		var result map[string]host
		for k, h := range shard {
			locations := make([]location, 0, len(h.locations))
			for _, v := range h.locations {
				if keep(v) {
					locations = append(locations, v)
				}
			}
			if len(locations) == len(h.locations) {
				continue
			}
			if result == nil {
				result = make(map[string]host, len(shard))
				for k, v := range shard {
					result[k] = v
				}
			}
			if len(locations) == 0 {
				delete(result, k)
				continue
			}
			result[k] = host{mac: h.mac, locations: locations}
		}

		return result
	})
}

// Expire removes the locations that have not been seen during the timeout.
func (r *HostTable) Expire() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	deadline := r.now().Add(-r.timeout).UnixNano()
	r.filter(func(v location) bool {
		return v.lastSeen.Load() > deadline
	})
}

func (r *HostTable) RemovePort(dpid uint64, port uint16) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.filter(func(v location) bool {
		return !v.at(dpid, port)
	})
}

func (r *HostTable) RemoveSwitch(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.filter(func(v location) bool {
		return v.dpid != dpid
	})
}

// Relabel resolves the islands of all locations again. It should be called when the topology is changed.
func (r *HostTable) Relabel() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.rewrite(func(shard map[string]host) map[string]host {
		if len(shard) == 0 {
			return nil
		}

		result := make(map[string]host, len(shard))
		for k, h := range shard {
			locations := make([]location, 0, len(h.locations))
			// Island of the most recent location kept for it.
			kept := make(map[forwarding.IslandID]int)
			for _, v := range h.locations {
				loc := r.resolve(v.dpid, v.port)
				loc.lastSeen = v.lastSeen
				if loc.hasIsland {
					// Keep the most recent one if islands have been merged.
					if i, ok := kept[loc.island]; ok {
						if loc.lastSeen.Load() > locations[i].lastSeen.Load() {
							locations[i] = loc
						}
						continue
					}
					kept[loc.island] = len(locations)
				}
				locations = append(locations, loc)
			}
			result[k] = host{mac: h.mac, locations: locations}
		}

		return result
	})
}

type HostLocation struct {
	DPID     uint64    `json:"dpid"`
	Port     uint16    `json:"port"`
	Island   *uint64   `json:"island,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

type Host struct {
	MAC       string         `json:"mac"`
	Locations []HostLocation `json:"locations"`
}

// Hosts returns all the hosts in ascending order of the MAC address.
func (r *HostTable) Hosts() []Host {
	snapshot := r.snapshot.Load()

	result := make([]Host, 0)
	for _, shard := range snapshot.shards {
		for _, h := range shard {
			v := Host{MAC: h.mac.String(), Locations: make([]HostLocation, 0, len(h.locations))}
			for _, l := range h.locations {
				loc := HostLocation{
					DPID:     l.dpid,
					Port:     l.port,
					LastSeen: time.Unix(0, l.lastSeen.Load()).UTC(),
				}
				if l.hasIsland {
					island := uint64(l.island)
					loc.Island = &island
				}
				v.Locations = append(v.Locations, loc)
			}
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MAC < result[j].MAC })

	return result
}
