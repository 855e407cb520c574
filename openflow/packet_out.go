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
)

// PacketOut is the ofp_packet_out structure. Data is only sent when BufferID is
// NoBuffer, otherwise the switch uses its buffered copy of the packet.
type PacketOut struct {
	Message
	BufferID uint32
	InPort   uint16
	Actions  []ActionOutput
	Data     []byte
}

const packetOutMinLength = 16

func NewPacketOut(xid uint32) *PacketOut {
	return &PacketOut{
		Message:  NewMessage(OFPT_PACKET_OUT, xid),
		BufferID: NoBuffer,
		InPort:   OFPP_NONE,
	}
}

func (r *PacketOut) AddAction(a ActionOutput) {
	r.Actions = append(r.Actions, a)
}

// ActionsLength returns the length in bytes of the action list.
func (r *PacketOut) ActionsLength() uint16 {
	return uint16(len(r.Actions) * actionOutputLength)
}

// TotalLength returns the message length that will be announced in the header.
func (r *PacketOut) TotalLength() uint16 {
	length := packetOutMinLength + r.ActionsLength()
	if r.BufferID == NoBuffer {
		length += uint16(len(r.Data))
	}

	return length
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8, 8+len(actions)+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.InPort)
	binary.BigEndian.PutUint16(v[6:8], uint16(len(actions)))
	v = append(v, actions...)
	if r.BufferID == NoBuffer {
		v = append(v, r.Data...)
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *PacketOut) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.InPort = binary.BigEndian.Uint16(payload[4:6])
	length := int(binary.BigEndian.Uint16(payload[6:8]))
	if len(payload) < 8+length {
		return ErrInvalidPacketLength
	}
	actions, err := unmarshalActions(payload[8 : 8+length])
	if err != nil {
		return err
	}
	r.Actions = actions
	r.Data = payload[8+length:]

	return nil
}
