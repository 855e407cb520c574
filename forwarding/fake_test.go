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

package forwarding

import (
	"encoding"
	"net"
	"sort"
	"sync"
	"testing"

	"github.com/superkkt/forwarder/openflow"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type fakeSwitch struct {
	mutex     sync.Mutex
	id        uint64
	flood     bool
	wildcards uint32
	err       error
	written   []encoding.BinaryMarshaler
}

func newFakeSwitch(id uint64) *fakeSwitch {
	return &fakeSwitch{id: id, flood: true, wildcards: openflow.OFPFW_ALL}
}

func (r *fakeSwitch) ID() uint64 {
	return r.id
}

func (r *fakeSwitch) Write(msg encoding.BinaryMarshaler) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, msg)
	return nil
}

func (r *fakeSwitch) SupportsFlood() bool {
	return r.flood
}

func (r *fakeSwitch) DefaultWildcards() uint32 {
	return r.wildcards
}

func (r *fakeSwitch) packetOuts() []*openflow.PacketOut {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result := make([]*openflow.PacketOut, 0)
	for _, v := range r.written {
		if out, ok := v.(*openflow.PacketOut); ok {
			result = append(result, out)
		}
	}
	return result
}

func (r *fakeSwitch) flowMods() []*openflow.FlowMod {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result := make([]*openflow.FlowMod, 0)
	for _, v := range r.written {
		if fm, ok := v.(*openflow.FlowMod); ok {
			result = append(result, fm)
		}
	}
	return result
}

type fakeFinder map[uint64]*fakeSwitch

func (r fakeFinder) Switch(dpid uint64) (Switch, bool) {
	sw, ok := r[dpid]
	if !ok {
		return nil, false
	}
	return sw, true
}

type fakeSnapshot map[string]Device

func (r fakeSnapshot) Device(mac net.HardwareAddr) (Device, bool) {
	d, ok := r[mac.String()]
	return d, ok
}

func (r fakeSnapshot) SortedAttachmentPoints(d Device) []AttachmentPoint {
	result := append([]AttachmentPoint(nil), d.AttachmentPoints...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Island < result[j].Island
	})
	return result
}

type fakeLocator struct {
	snapshot fakeSnapshot
	reads    int
}

func (r *fakeLocator) Snapshot() DeviceSnapshot {
	r.reads++
	return r.snapshot
}

func (r *fakeLocator) add(mac string, aps ...AttachmentPoint) {
	m, err := net.ParseMAC(mac)
	if err != nil {
		panic(err)
	}
	r.snapshot[m.String()] = Device{MAC: m, AttachmentPoints: aps}
}

type fakeTopology struct {
	islands map[uint64]IslandID
	denied  map[SwitchPort]bool
}

func (r *fakeTopology) IslandOf(dpid uint64) (IslandID, bool) {
	v, ok := r.islands[dpid]
	return v, ok
}

func (r *fakeTopology) IsIngressBroadcastAllowed(dpid uint64, port uint16) bool {
	return !r.denied[SwitchPort{Switch: dpid, Port: port}]
}

type fakeRoutes struct {
	// Returns a direct route between any two switches if all is true.
	all    bool
	routes map[[2]uint64]*Route
	calls  [][2]uint64
}

func (r *fakeRoutes) Route(src, dst uint64) (*Route, bool) {
	r.calls = append(r.calls, [2]uint64{src, dst})
	if v, ok := r.routes[[2]uint64{src, dst}]; ok {
		return v, true
	}
	if r.all && src != dst {
		return &Route{Src: src, Dst: dst, Links: []Link{{Src: SwitchPort{src, 100}, Dst: SwitchPort{dst, 100}}}}, true
	}
	return nil, false
}

type recordingInstaller struct {
	requests []InstallRequest
	// Install fails if err is not nil.
	err error
}

func (r *recordingInstaller) Install(req InstallRequest) error {
	r.requests = append(r.requests, req)
	return r.err
}

type fixture struct {
	locator   *fakeLocator
	topology  *fakeTopology
	routes    *fakeRoutes
	installer *recordingInstaller
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		locator:   &fakeLocator{snapshot: make(fakeSnapshot)},
		topology:  &fakeTopology{islands: make(map[uint64]IslandID), denied: make(map[SwitchPort]bool)},
		routes:    &fakeRoutes{routes: make(map[[2]uint64]*Route)},
		installer: &recordingInstaller{},
	}
	engine, err := NewEngine(Config{
		Devices:     f.locator,
		Topology:    f.topology,
		Routes:      f.routes,
		Installer:   f.installer,
		FlowRemoved: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.engine = engine

	return f
}

func ap(sw uint64, port uint16, island IslandID) AttachmentPoint {
	return AttachmentPoint{Switch: sw, Port: port, Island: island, HasIsland: true}
}

func mustMAC(s string) net.HardwareAddr {
	v, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return v
}

// newUDPFrame returns an Ethernet/IPv4/UDP frame from src to dst.
func newUDPFrame(t *testing.T, src, dst string) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	payload := gopacket.Payload([]byte("hello"))
	err := gopacket.SerializeLayers(buf, opts,
		&layers.Ethernet{
			SrcMAC:       mustMAC(src),
			DstMAC:       mustMAC(dst),
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{
			Version:  4,
			TTL:      64,
			TOS:      0x2B,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		},
		&layers.UDP{
			SrcPort: 5000,
			DstPort: 53,
		},
		&payload)
	if err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}
