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

type FlowMod struct {
	Message
	Match       *Match
	Cookie      uint64
	Command     FlowModCmd
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	// OutPort restricts DELETE commands; it is ignored by ADD and MODIFY.
	OutPort uint16
	Flags   uint16
	Actions []ActionOutput
}

const flowModMinLength = 72

func NewFlowMod(xid uint32, cmd FlowModCmd) *FlowMod {
	return &FlowMod{
		Message:  NewMessage(OFPT_FLOW_MOD, xid),
		Match:    NewMatch(),
		Command:  cmd,
		BufferID: NoBuffer,
		OutPort:  OFPP_NONE,
	}
}

func (r *FlowMod) AddAction(a ActionOutput) {
	r.Actions = append(r.Actions, a)
}

func (r *FlowMod) MarshalBinary() ([]byte, error) {
	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, flowModMinLength-8, flowModMinLength-8+len(actions))
	copy(v[0:40], match)
	binary.BigEndian.PutUint64(v[40:48], r.Cookie)
	binary.BigEndian.PutUint16(v[48:50], uint16(r.Command))
	binary.BigEndian.PutUint16(v[50:52], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[52:54], r.HardTimeout)
	binary.BigEndian.PutUint16(v[54:56], r.Priority)
	binary.BigEndian.PutUint32(v[56:60], r.BufferID)
	binary.BigEndian.PutUint16(v[60:62], r.OutPort)
	binary.BigEndian.PutUint16(v[62:64], r.Flags)
	v = append(v, actions...)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *FlowMod) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < flowModMinLength-8 {
		return ErrInvalidPacketLength
	}
	r.Match = new(Match)
	if err := r.Match.UnmarshalBinary(payload[0:40]); err != nil {
		return err
	}
	r.Cookie = binary.BigEndian.Uint64(payload[40:48])
	r.Command = FlowModCmd(binary.BigEndian.Uint16(payload[48:50]))
	r.IdleTimeout = binary.BigEndian.Uint16(payload[50:52])
	r.HardTimeout = binary.BigEndian.Uint16(payload[52:54])
	r.Priority = binary.BigEndian.Uint16(payload[54:56])
	r.BufferID = binary.BigEndian.Uint32(payload[56:60])
	r.OutPort = binary.BigEndian.Uint16(payload[60:62])
	r.Flags = binary.BigEndian.Uint16(payload[62:64])
	actions, err := unmarshalActions(payload[64:])
	if err != nil {
		return err
	}
	r.Actions = actions

	return nil
}
