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
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPacketOutBuffered(t *testing.T) {
	out := NewPacketOut(7)
	out.BufferID = 0x1234
	out.InPort = 3
	out.AddAction(NewActionOutput(OFPP_FLOOD))
	out.Data = []byte{1, 2, 3, 4}

	if out.TotalLength() != 24 {
		t.Fatalf("Unexpected total length: expected=24, got=%v", out.TotalLength())
	}
	v, err := out.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 24 || binary.BigEndian.Uint16(v[2:4]) != 24 {
		t.Fatalf("Unexpected packet-out length: len=%v, header=%v", len(v), binary.BigEndian.Uint16(v[2:4]))
	}
	if binary.BigEndian.Uint32(v[8:12]) != 0x1234 {
		t.Fatalf("Unexpected buffer ID: %x", v[8:12])
	}
	if binary.BigEndian.Uint16(v[14:16]) != 8 {
		t.Fatalf("Unexpected actions length: %v", binary.BigEndian.Uint16(v[14:16]))
	}
	if binary.BigEndian.Uint16(v[20:22]) != OFPP_FLOOD {
		t.Fatalf("Unexpected output port: 0x%x", binary.BigEndian.Uint16(v[20:22]))
	}
}

func TestPacketOutUnbuffered(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef, 0x00}
	out := NewPacketOut(1)
	out.AddAction(NewActionOutput(OFPP_ALL))
	out.Data = data

	expected := uint16(8 + 8 + 8 + len(data))
	if out.TotalLength() != expected {
		t.Fatalf("Unexpected total length: expected=%v, got=%v", expected, out.TotalLength())
	}
	v, err := out.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint16(v[2:4]) != expected {
		t.Fatalf("Unexpected header length: expected=%v, got=%v", expected, binary.BigEndian.Uint16(v[2:4]))
	}
	if !bytes.Equal(v[24:], data) {
		t.Fatalf("Unexpected payload: %x", v[24:])
	}

	decoded := new(PacketOut)
	if err := decoded.UnmarshalBinary(v); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]ActionOutput{{Port: OFPP_ALL}}, decoded.Actions); diff != "" {
		t.Fatalf("Unexpected actions (-want +got):\n%v", diff)
	}
	if decoded.BufferID != NoBuffer || decoded.InPort != OFPP_NONE {
		t.Fatalf("Unexpected buffer/in-port: %x/%x", decoded.BufferID, decoded.InPort)
	}
}

func TestMatchLayout(t *testing.T) {
	m := NewMatch()
	m.Wildcards = OFPFW_ALL &^ (OFPFW_IN_PORT | OFPFW_DL_DST)
	m.InPort = 5
	m.DstMAC = net.HardwareAddr{0, 1, 2, 3, 4, 5}
	m.VLANID = VLANNone
	m.SrcIP = net.IPv4(10, 0, 0, 1)

	v, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 40 {
		t.Fatalf("Unexpected match length: %v", len(v))
	}
	if binary.BigEndian.Uint32(v[0:4]) != m.Wildcards {
		t.Fatalf("Unexpected wildcards: %x", v[0:4])
	}
	if binary.BigEndian.Uint16(v[4:6]) != 5 {
		t.Fatalf("Unexpected in-port: %x", v[4:6])
	}
	if !bytes.Equal(v[12:18], m.DstMAC) {
		t.Fatalf("Unexpected destination MAC: %x", v[12:18])
	}
	if binary.BigEndian.Uint16(v[18:20]) != VLANNone {
		t.Fatalf("Unexpected VLAN: %x", v[18:20])
	}
	if !bytes.Equal(v[28:32], []byte{10, 0, 0, 1}) {
		t.Fatalf("Unexpected source IP: %x", v[28:32])
	}

	if _, err := (&Match{SrcMAC: net.HardwareAddr{1, 2}}).MarshalBinary(); err == nil {
		t.Fatal("Expected error for a short MAC address, but not occurred!")
	}
}

func TestFlowModLayout(t *testing.T) {
	fm := NewFlowMod(9, FlowAdd)
	fm.Match.InPort = 2
	fm.Cookie = 0x0020000000000000
	fm.IdleTimeout = 5
	fm.Priority = 1
	fm.Flags = OFPFF_SEND_FLOW_REM
	fm.AddAction(NewActionOutput(4))

	v, err := fm.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 80 || binary.BigEndian.Uint16(v[2:4]) != 80 {
		t.Fatalf("Unexpected flow-mod length: %v", len(v))
	}
	if v[1] != OFPT_FLOW_MOD {
		t.Fatalf("Unexpected message type: %v", v[1])
	}
	if binary.BigEndian.Uint64(v[48:56]) != fm.Cookie {
		t.Fatalf("Unexpected cookie: %x", v[48:56])
	}
	if FlowModCmd(binary.BigEndian.Uint16(v[56:58])) != FlowAdd {
		t.Fatalf("Unexpected command: %x", v[56:58])
	}
	if binary.BigEndian.Uint32(v[64:68]) != NoBuffer {
		t.Fatalf("Unexpected buffer ID: %x", v[64:68])
	}
	if binary.BigEndian.Uint16(v[70:72]) != OFPFF_SEND_FLOW_REM {
		t.Fatalf("Unexpected flags: %x", v[70:72])
	}
	if binary.BigEndian.Uint16(v[76:78]) != 4 {
		t.Fatalf("Unexpected output port: %x", v[76:78])
	}

	decoded := new(FlowMod)
	if err := decoded.UnmarshalBinary(v); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fm.Match, decoded.Match); diff != "" {
		t.Fatalf("Unexpected match (-want +got):\n%v", diff)
	}
	if decoded.Cookie != fm.Cookie || decoded.Priority != 1 || len(decoded.Actions) != 1 {
		t.Fatalf("Unexpected flow-mod: %+v", decoded)
	}
}

func TestPacketInUnmarshal(t *testing.T) {
	frame := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	v := []byte{
		OF10_VERSION, OFPT_PACKET_IN, 0, 24, 0, 0, 0, 1,
		0xff, 0xff, 0xff, 0xff, // buffer ID
		0, 6, // total length
		0, 3, // in-port
		OFPR_NO_MATCH, 0,
	}
	v = append(v, frame...)

	p := new(PacketIn)
	if err := p.UnmarshalBinary(v); err != nil {
		t.Fatal(err)
	}
	if p.BufferID != NoBuffer || p.InPort != 3 || p.Length != 6 {
		t.Fatalf("Unexpected packet-in: %+v", p)
	}
	if !bytes.Equal(p.Data, frame) {
		t.Fatalf("Unexpected data: %x", p.Data)
	}
	// Data must not alias the input buffer.
	v[len(v)-1] = 0
	if p.Data[5] != 0xff {
		t.Fatal("packet-in data shares the input buffer")
	}

	if err := new(PacketIn).UnmarshalBinary(v[:12]); err == nil {
		t.Fatal("Expected error for a truncated packet-in, but not occurred!")
	}
}
