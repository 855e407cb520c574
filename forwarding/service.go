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
	"fmt"
	"net"

	"github.com/superkkt/forwarder/openflow"
)

// Switch is a handle of a connected OpenFlow switch.
type Switch interface {
	ID() uint64
	// Write sends msg to the switch. It never retries on failure.
	Write(msg encoding.BinaryMarshaler) error
	// SupportsFlood returns whether the switch implements the OFPP_FLOOD virtual port.
	SupportsFlood() bool
	DefaultWildcards() uint32
}

type SwitchFinder interface {
	Switch(dpid uint64) (Switch, bool)
}

// IslandID identifies a set of switches connected to each other. Two attachment
// points can be connected by a route only if they belong to the same island.
type IslandID uint64

type AttachmentPoint struct {
	Switch uint64
	Port   uint16
	Island IslandID
	// HasIsland is false if the switch is unknown to the topology.
	HasIsland bool
}

// Equal compares the switch and port only.
func (r AttachmentPoint) Equal(ap AttachmentPoint) bool {
	return r.Switch == ap.Switch && r.Port == ap.Port
}

func (r AttachmentPoint) String() string {
	if !r.HasIsland {
		return fmt.Sprintf("%v:%v(island=unknown)", r.Switch, r.Port)
	}
	return fmt.Sprintf("%v:%v(island=%v)", r.Switch, r.Port, r.Island)
}

type Device struct {
	MAC net.HardwareAddr
	// Ordered by the device locator.
	AttachmentPoints []AttachmentPoint
}

// DeviceSnapshot is an immutable view of the known devices.
type DeviceSnapshot interface {
	Device(mac net.HardwareAddr) (Device, bool)
	// SortedAttachmentPoints returns the attachment points of d in ascending
	// order of the island ID.
	SortedAttachmentPoints(d Device) []AttachmentPoint
}

type DeviceLocator interface {
	Snapshot() DeviceSnapshot
}

type TopologyAdapter interface {
	IslandOf(dpid uint64) (IslandID, bool)
	IsIngressBroadcastAllowed(dpid uint64, port uint16) bool
}

type SwitchPort struct {
	Switch uint64
	Port   uint16
}

// Link is a directed hop from one switch port to a port of a neighbor switch.
type Link struct {
	Src SwitchPort
	Dst SwitchPort
}

type Route struct {
	Src   uint64
	Dst   uint64
	Links []Link
}

type RouteProvider interface {
	// Route returns false if there is no known path from src to dst.
	Route(src, dst uint64) (*Route, bool)
}

type PacketIn struct {
	Switch   uint64
	InPort   uint16
	BufferID uint32
	Data     []byte
}

func (r PacketIn) IsBuffered() bool {
	return r.BufferID != openflow.NoBuffer
}

type InstallRequest struct {
	Match *Match
	Src   AttachmentPoint
	Dst   AttachmentPoint
	// Nil if Src and Dst are on the same switch.
	Route       *Route
	BufferID    uint32
	Cookie      uint64
	Command     openflow.FlowModCmd
	FlowRemoved bool
	// Flush asks the installer to program the reverse direction as well.
	Flush    bool
	PacketIn *PacketIn
}

// PathInstaller translates an install request into flow-mods along the path.
type PathInstaller interface {
	Install(req InstallRequest) error
}
