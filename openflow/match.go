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

package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Match is the ofp_match structure. Wildcards is the raw OFPFW_* bitmask and
// decides which of the other fields are actually compared by the switch.
type Match struct {
	Wildcards    uint32
	InPort       uint16
	SrcMAC       net.HardwareAddr
	DstMAC       net.HardwareAddr
	VLANID       uint16
	VLANPriority uint8
	EtherType    uint16
	TOS          uint8
	Protocol     uint8
	SrcIP        net.IP
	DstIP        net.IP
	SrcPort      uint16
	DstPort      uint16
}

// NewMatch returns a Match whose fields are all wildcarded.
func NewMatch() *Match {
	return &Match{
		Wildcards: OFPFW_ALL,
		SrcMAC:    net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstMAC:    net.HardwareAddr{0, 0, 0, 0, 0, 0},
		SrcIP:     net.IPv4zero,
		DstIP:     net.IPv4zero,
	}
}

func (r *Match) String() string {
	return fmt.Sprintf("Wildcards=0x%06x, InPort=%v, SrcMAC=%v, DstMAC=%v, VLAN=%v, EtherType=0x%04x, Protocol=%v, SrcIP=%v, DstIP=%v, SrcPort=%v, DstPort=%v",
		r.Wildcards, r.InPort, r.SrcMAC, r.DstMAC, r.VLANID, r.EtherType, r.Protocol, r.SrcIP, r.DstIP, r.SrcPort, r.DstPort)
}

// Clone returns a deep copy of r.
func (r *Match) Clone() *Match {
	v := *r
	v.SrcMAC = append(net.HardwareAddr(nil), r.SrcMAC...)
	v.DstMAC = append(net.HardwareAddr(nil), r.DstMAC...)
	v.SrcIP = append(net.IP(nil), r.SrcIP...)
	v.DstIP = append(net.IP(nil), r.DstIP...)

	return &v
}

func copyIPv4(dst []byte, ip net.IP) {
	if v := ip.To4(); v != nil {
		copy(dst, v)
	}
}

func (r *Match) MarshalBinary() ([]byte, error) {
	if len(r.SrcMAC) != 6 && len(r.SrcMAC) != 0 {
		return nil, fmt.Errorf("source: %v", ErrInvalidMACAddress)
	}
	if len(r.DstMAC) != 6 && len(r.DstMAC) != 0 {
		return nil, fmt.Errorf("destination: %v", ErrInvalidMACAddress)
	}

	data := make([]byte, 40)
	binary.BigEndian.PutUint32(data[0:4], r.Wildcards)
	binary.BigEndian.PutUint16(data[4:6], r.InPort)
	copy(data[6:12], r.SrcMAC)
	copy(data[12:18], r.DstMAC)
	binary.BigEndian.PutUint16(data[18:20], r.VLANID)
	data[20] = r.VLANPriority
	// data[21] = padding
	binary.BigEndian.PutUint16(data[22:24], r.EtherType)
	data[24] = r.TOS
	data[25] = r.Protocol
	// data[26:28] = padding
	copyIPv4(data[28:32], r.SrcIP)
	copyIPv4(data[32:36], r.DstIP)
	binary.BigEndian.PutUint16(data[36:38], r.SrcPort)
	binary.BigEndian.PutUint16(data[38:40], r.DstPort)

	return data, nil
}

func (r *Match) UnmarshalBinary(data []byte) error {
	if len(data) < 40 {
		return ErrInvalidPacketLength
	}

	r.Wildcards = binary.BigEndian.Uint32(data[0:4])
	r.InPort = binary.BigEndian.Uint16(data[4:6])
	r.SrcMAC = make(net.HardwareAddr, 6)
	copy(r.SrcMAC, data[6:12])
	r.DstMAC = make(net.HardwareAddr, 6)
	copy(r.DstMAC, data[12:18])
	r.VLANID = binary.BigEndian.Uint16(data[18:20])
	r.VLANPriority = data[20]
	r.EtherType = binary.BigEndian.Uint16(data[22:24])
	r.TOS = data[24]
	r.Protocol = data[25]
	r.SrcIP = net.IPv4(data[28], data[29], data[30], data[31])
	r.DstIP = net.IPv4(data[32], data[33], data[34], data[35])
	r.SrcPort = binary.BigEndian.Uint16(data[36:38])
	r.DstPort = binary.BigEndian.Uint16(data[38:40])

	return nil
}
