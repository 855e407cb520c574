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
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/superkkt/forwarder/forwarding"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mutex   sync.Mutex
	islands map[uint64]forwarding.IslandID
}

func (r *fakeResolver) IslandOf(dpid uint64) (forwarding.IslandID, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, ok := r.islands[dpid]
	return v, ok
}

func (r *fakeResolver) set(dpid uint64, island forwarding.IslandID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.islands[dpid] = island
}

type hostFixture struct {
	resolver *fakeResolver
	table    *HostTable
	clock    time.Time
}

func newHostFixture() *hostFixture {
	f := &hostFixture{
		resolver: &fakeResolver{islands: map[uint64]forwarding.IslandID{1: 1, 2: 1, 5: 5}},
		clock:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.table = NewHostTable(f.resolver, time.Minute)
	f.table.now = func() time.Time { return f.clock }

	return f
}

// learn advances the clock before learning so that every sighting has its own timestamp.
func (r *hostFixture) learn(dpid uint64, port uint16, mac net.HardwareAddr) {
	r.clock = r.clock.Add(2 * time.Second)
	r.table.Learn(dpid, port, mac)
}

var (
	macA = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0a}
	macB = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0b}
)

func attachments(t *testing.T, s forwarding.DeviceSnapshot, mac net.HardwareAddr) []forwarding.AttachmentPoint {
	d, ok := s.Device(mac)
	require.True(t, ok, "unknown device %v", mac)
	require.Equal(t, mac.String(), d.MAC.String())

	return d.AttachmentPoints
}

func TestHostLearn(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))

	_, ok := f.table.Snapshot().Device(macB)
	require.False(t, ok)
}

func TestHostMoveWithinIsland(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)
	f.learn(2, 20, macA)

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 2, Port: 20, Island: 1, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))
}

func TestHostMultipleIslands(t *testing.T) {
	f := newHostFixture()
	f.learn(5, 50, macA)
	f.learn(9, 90, macA)
	f.learn(1, 10, macA)

	s := f.table.Snapshot()
	aps := attachments(t, s, macA)
	// Most recently seen first.
	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
		{Switch: 9, Port: 90},
		{Switch: 5, Port: 50, Island: 5, HasIsland: true},
	}, aps)

	d, _ := s.Device(macA)
	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
		{Switch: 5, Port: 50, Island: 5, HasIsland: true},
		{Switch: 9, Port: 90},
	}, s.SortedAttachmentPoints(d))
}

func TestHostSnapshotIsolation(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)

	old := f.table.Snapshot()
	f.learn(2, 20, macA)
	f.learn(1, 11, macB)

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
	}, attachments(t, old, macA))
	_, ok := old.Device(macB)
	require.False(t, ok)

	_, ok = f.table.Snapshot().Device(macB)
	require.True(t, ok)
}

func TestHostRefresh(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)
	f.learn(5, 50, macA)

	old := f.table.Snapshot()
	f.learn(1, 10, macA)
	f.learn(5, 50, macA)
	f.learn(1, 10, macA)
	// Sightings on the known locations never publish a new snapshot.
	require.True(t, old == f.table.Snapshot())

	hosts := f.table.Hosts()
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Locations, 2)
	for _, v := range hosts[0].Locations {
		if v.DPID == 1 {
			require.True(t, v.LastSeen.Equal(f.clock), "last seen %v, expected %v", v.LastSeen, f.clock)
		}
	}
	// The refreshed timestamps are visible through the old snapshot as well.
	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
		{Switch: 5, Port: 50, Island: 5, HasIsland: true},
	}, attachments(t, old, macA))

	f.learn(1, 11, macA)
	require.False(t, old == f.table.Snapshot())
}

func TestHostRefreshKeepsAlive(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)

	f.clock = f.clock.Add(50 * time.Second)
	f.learn(1, 10, macA)
	f.clock = f.clock.Add(50 * time.Second)
	f.table.Expire()

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 1, Port: 10, Island: 1, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))

	f.clock = f.clock.Add(time.Minute)
	f.table.Expire()
	_, ok := f.table.Snapshot().Device(macA)
	require.False(t, ok)
}

func TestHostLearnCopiesOneShard(t *testing.T) {
	f := newHostFixture()
	for i := 0; i < 1000; i++ {
		f.table.Learn(1, 10, net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte(i >> 8), byte(i)})
	}
	require.Len(t, f.table.Hosts(), 1000)

	before := f.table.snapshot.Load()
	f.learn(2, 20, macA)
	after := f.table.snapshot.Load()

	changed := 0
	for i := range before.shards {
		if reflect.ValueOf(before.shards[i]).Pointer() != reflect.ValueOf(after.shards[i]).Pointer() {
			changed++
			require.Equal(t, shardOf(string(macA)), i)
		}
	}
	require.Equal(t, 1, changed)
	require.Len(t, f.table.Hosts(), 1001)
}

func TestHostExpire(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)
	f.clock = f.clock.Add(30 * time.Second)
	f.learn(5, 50, macA)
	f.learn(1, 11, macB)

	f.clock = f.clock.Add(40 * time.Second)
	f.table.Expire()

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 5, Port: 50, Island: 5, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))
	_, ok := f.table.Snapshot().Device(macB)
	require.True(t, ok)

	f.clock = f.clock.Add(2 * time.Minute)
	f.table.Expire()
	require.Empty(t, f.table.Hosts())
}

func TestHostRemove(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)
	f.learn(5, 50, macA)
	f.learn(1, 11, macB)

	f.table.RemovePort(1, 10)
	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 5, Port: 50, Island: 5, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))

	f.table.RemoveSwitch(1)
	_, ok := f.table.Snapshot().Device(macB)
	require.False(t, ok)
}

func TestHostRelabel(t *testing.T) {
	f := newHostFixture()
	f.learn(1, 10, macA)
	f.learn(5, 50, macA)

	// Island 5 has been merged into island 1.
	f.resolver.set(5, 1)
	f.table.Relabel()

	require.Equal(t, []forwarding.AttachmentPoint{
		{Switch: 5, Port: 50, Island: 1, HasIsland: true},
	}, attachments(t, f.table.Snapshot(), macA))

	hosts := f.table.Hosts()
	require.Len(t, hosts, 1)
	require.Equal(t, macA.String(), hosts[0].MAC)
	require.Len(t, hosts[0].Locations, 1)
	require.NotNil(t, hosts[0].Locations[0].Island)
	require.Equal(t, uint64(1), *hosts[0].Locations[0].Island)
}
