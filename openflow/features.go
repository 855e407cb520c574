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
	"fmt"
	"net"
)

const (
	OFPPC_PORT_DOWN = 1 << 0
	OFPPC_NO_FLOOD  = 1 << 4
)

const (
	OFPPS_LINK_DOWN = 1 << 0
)

const (
	OFPPR_ADD    = 0
	OFPPR_DELETE = 1
	OFPPR_MODIFY = 2
)

const physicalPortLength = 48

// PhysicalPort is the ofp_phy_port structure.
type PhysicalPort struct {
	Number uint16
	MAC    net.HardwareAddr
	Name   string
	Config uint32
	State  uint32
}

func (r PhysicalPort) String() string {
	return fmt.Sprintf("Number=%v, MAC=%v, Name=%v, PortDown=%v, LinkDown=%v", r.Number, r.MAC, r.Name, r.IsPortDown(), r.IsLinkDown())
}

// IsPortDown returns whether the port is administratively down.
func (r PhysicalPort) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

// IsLinkDown returns whether the physical link on the port is down.
func (r PhysicalPort) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

func (r *PhysicalPort) UnmarshalBinary(data []byte) error {
	if len(data) < physicalPortLength {
		return ErrInvalidPacketLength
	}

	r.Number = binary.BigEndian.Uint16(data[0:2])
	r.MAC = make(net.HardwareAddr, 6)
	copy(r.MAC, data[2:8])
	r.Name = string(bytes.TrimRight(data[8:24], "\x00"))
	r.Config = binary.BigEndian.Uint32(data[24:28])
	r.State = binary.BigEndian.Uint32(data[28:32])

	return nil
}

type FeaturesRequest struct {
	Message
}

func NewFeaturesRequest(xid uint32) *FeaturesRequest {
	return &FeaturesRequest{Message: NewMessage(OFPT_FEATURES_REQUEST, xid)}
}

type FeaturesReply struct {
	Message
	DPID         uint64
	NumBuffers   uint32
	NumTables    uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PhysicalPort
}

func (r *FeaturesReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 24 {
		return ErrInvalidPacketLength
	}
	r.DPID = binary.BigEndian.Uint64(payload[0:8])
	r.NumBuffers = binary.BigEndian.Uint32(payload[8:12])
	r.NumTables = payload[12]
	// payload[13:16] is padding
	r.Capabilities = binary.BigEndian.Uint32(payload[16:20])
	r.Actions = binary.BigEndian.Uint32(payload[20:24])

	r.Ports = make([]PhysicalPort, 0)
	for p := payload[24:]; len(p) >= physicalPortLength; p = p[physicalPortLength:] {
		port := PhysicalPort{}
		if err := port.UnmarshalBinary(p); err != nil {
			return err
		}
		r.Ports = append(r.Ports, port)
	}

	return nil
}

type SetConfig struct {
	Message
	Flags uint16
	// Max bytes of a new flow that the switch should send to the controller.
	MissSendLength uint16
}

func NewSetConfig(xid uint32) *SetConfig {
	return &SetConfig{
		Message:        NewMessage(OFPT_SET_CONFIG, xid),
		MissSendLength: 0xFFFF,
	}
}

func (r *SetConfig) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.Flags)
	binary.BigEndian.PutUint16(v[2:4], r.MissSendLength)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

type PortStatus struct {
	Message
	Reason uint8
	Port   PhysicalPort
}

func (r *PortStatus) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8+physicalPortLength {
		return ErrInvalidPacketLength
	}
	r.Reason = payload[0]
	// payload[1:8] is padding

	return r.Port.UnmarshalBinary(payload[8:])
}
