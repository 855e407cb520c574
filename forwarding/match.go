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
	"fmt"
	"net"

	"github.com/superkkt/forwarder/openflow"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// Bits that must stay exact-match in the installed flows regardless of the switch default.
const exactMatchBits = openflow.OFPFW_IN_PORT | openflow.OFPFW_DL_VLAN | openflow.OFPFW_DL_SRC |
	openflow.OFPFW_DL_DST | openflow.OFPFW_NW_SRC_MASK | openflow.OFPFW_NW_DST_MASK

// Wildcard returns the wildcard mask for a flow derived from the default mask of a switch.
func Wildcard(defaults uint32) uint32 {
	return defaults &^ exactMatchBits
}

// Match is the flow match descriptor derived from a packet header.
type Match struct {
	InPort       uint16
	SrcMAC       net.HardwareAddr
	DstMAC       net.HardwareAddr
	VLANID       uint16
	VLANPriority uint8
	EtherType    uint16
	TOS          uint8
	// IP protocol number, or the lower 8 bits of the ARP opcode.
	Protocol uint8
	SrcIP    net.IP
	DstIP    net.IP
	// TCP/UDP ports, or the ICMP type and code.
	SrcPort   uint16
	DstPort   uint16
	Wildcards uint32
}

// NewMatch decodes the headers of packet that has been received on inPort.
func NewMatch(packet []byte, inPort uint16) (*Match, error) {
	var (
		eth     layers.Ethernet
		dot1q   layers.Dot1Q
		ip      layers.IPv4
		arp     layers.ARP
		tcp     layers.TCP
		udp     layers.UDP
		icmp    layers.ICMPv4
		payload gopacket.Payload
		decoded []gopacket.LayerType
	)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &dot1q, &ip, &arp, &tcp, &udp, &icmp, &payload)
	if err := parser.DecodeLayers(packet, &decoded); err != nil {
		if _, ok := err.(gopacket.UnsupportedLayerType); !ok {
			if len(decoded) == 0 {
				return nil, errors.Wrap(err, "decoding ethernet frame")
			}
			// Keep the headers decoded so far.
			logger.Debugf("partially decoded packet: %v", err)
		}
	}

	m := &Match{
		InPort:    inPort,
		VLANID:    openflow.VLANNone,
		SrcIP:     net.IPv4zero,
		DstIP:     net.IPv4zero,
		Wildcards: 0,
	}
	for _, t := range decoded {
		switch t {
		case layers.LayerTypeEthernet:
			m.SrcMAC = append(net.HardwareAddr(nil), eth.SrcMAC...)
			m.DstMAC = append(net.HardwareAddr(nil), eth.DstMAC...)
			m.EtherType = uint16(eth.EthernetType)
		case layers.LayerTypeDot1Q:
			m.VLANID = dot1q.VLANIdentifier
			m.VLANPriority = dot1q.Priority
			m.EtherType = uint16(dot1q.Type)
		case layers.LayerTypeIPv4:
			// ToS without the ECN bits.
			m.TOS = ip.TOS & 0xFC
			m.Protocol = uint8(ip.Protocol)
			m.SrcIP = append(net.IP(nil), ip.SrcIP.To4()...)
			m.DstIP = append(net.IP(nil), ip.DstIP.To4()...)
		case layers.LayerTypeARP:
			m.Protocol = uint8(arp.Operation)
			m.SrcIP = append(net.IP(nil), arp.SourceProtAddress...)
			m.DstIP = append(net.IP(nil), arp.DstProtAddress...)
		case layers.LayerTypeTCP:
			m.SrcPort = uint16(tcp.SrcPort)
			m.DstPort = uint16(tcp.DstPort)
		case layers.LayerTypeUDP:
			m.SrcPort = uint16(udp.SrcPort)
			m.DstPort = uint16(udp.DstPort)
		case layers.LayerTypeICMPv4:
			m.SrcPort = uint16(icmp.TypeCode) >> 8
			m.DstPort = uint16(icmp.TypeCode) & 0xFF
		}
	}

	return m, nil
}

func (r *Match) String() string {
	return fmt.Sprintf("InPort=%v, SrcMAC=%v, DstMAC=%v, VLAN=%v, EtherType=0x%04x, Protocol=%v, SrcIP=%v, DstIP=%v, SrcPort=%v, DstPort=%v, Wildcards=0x%06x",
		r.InPort, r.SrcMAC, r.DstMAC, r.VLANID, r.EtherType, r.Protocol, r.SrcIP, r.DstIP, r.SrcPort, r.DstPort, r.Wildcards)
}

// IsBroadcast returns whether the destination is the broadcast or any multicast address.
func (r *Match) IsBroadcast() bool {
	// The I/G bit is also set on the broadcast address.
	return len(r.DstMAC) == 0 || r.DstMAC[0]&0x01 == 0x01
}

// Reverse returns a copy of r whose source and destination fields are swapped.
func (r *Match) Reverse() *Match {
	v := *r
	v.SrcMAC, v.DstMAC = r.DstMAC, r.SrcMAC
	v.SrcIP, v.DstIP = r.DstIP, r.SrcIP
	v.SrcPort, v.DstPort = r.DstPort, r.SrcPort
	return &v
}

// ForSwitch converts r into the OpenFlow match for sw, where the packet comes in through inPort.
func (r *Match) ForSwitch(sw Switch, inPort uint16) openflow.Match {
	m := openflow.NewMatch()
	m.Wildcards = Wildcard(sw.DefaultWildcards())
	m.InPort = inPort
	if len(r.SrcMAC) == 6 {
		m.SrcMAC = r.SrcMAC
	}
	if len(r.DstMAC) == 6 {
		m.DstMAC = r.DstMAC
	}
	m.VLANID = r.VLANID
	m.VLANPriority = r.VLANPriority
	m.EtherType = r.EtherType
	m.TOS = r.TOS
	m.Protocol = r.Protocol
	if r.SrcIP != nil {
		m.SrcIP = r.SrcIP
	}
	if r.DstIP != nil {
		m.DstIP = r.DstIP
	}
	m.SrcPort = r.SrcPort
	m.DstPort = r.DstPort

	return *m.Clone()
}
