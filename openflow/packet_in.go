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

const (
	OFPR_NO_MATCH = 0 /* No matching flow. */
	OFPR_ACTION   = 1 /* Action explicitly output to controller. */
)

type PacketIn struct {
	Message
	BufferID uint32
	// Full length of the frame.
	Length uint16
	InPort uint16
	Reason uint8
	Data   []byte
}

func (r *PacketIn) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 10 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.Length = binary.BigEndian.Uint16(payload[4:6])
	r.InPort = binary.BigEndian.Uint16(payload[6:8])
	r.Reason = payload[8]
	// payload[9] is padding
	r.Data = make([]byte, len(payload)-10)
	copy(r.Data, payload[10:])

	return nil
}

func (r *PacketIn) MarshalBinary() ([]byte, error) {
	v := make([]byte, 10+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.Length)
	binary.BigEndian.PutUint16(v[6:8], r.InPort)
	v[8] = r.Reason
	copy(v[10:], r.Data)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}
