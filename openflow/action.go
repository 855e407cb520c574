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

// ActionOutput is the ofp_action_output structure.
type ActionOutput struct {
	Port uint16
	// Max length to send to the controller when Port is OFPP_CONTROLLER.
	MaxLen uint16
}

const actionOutputLength = 8

func NewActionOutput(port uint16) ActionOutput {
	return ActionOutput{Port: port}
}

func (r ActionOutput) MarshalBinary() ([]byte, error) {
	v := make([]byte, actionOutputLength)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
	binary.BigEndian.PutUint16(v[2:4], actionOutputLength)
	binary.BigEndian.PutUint16(v[4:6], r.Port)
	binary.BigEndian.PutUint16(v[6:8], r.MaxLen)

	return v, nil
}

func (r *ActionOutput) UnmarshalBinary(data []byte) error {
	if len(data) < actionOutputLength {
		return ErrInvalidPacketLength
	}
	if binary.BigEndian.Uint16(data[0:2]) != OFPAT_OUTPUT {
		return ErrUnsupportedMessage
	}
	r.Port = binary.BigEndian.Uint16(data[4:6])
	r.MaxLen = binary.BigEndian.Uint16(data[6:8])

	return nil
}

func marshalActions(actions []ActionOutput) ([]byte, error) {
	v := make([]byte, 0, len(actions)*actionOutputLength)
	for _, a := range actions {
		b, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, b...)
	}

	return v, nil
}

func unmarshalActions(data []byte) ([]ActionOutput, error) {
	actions := make([]ActionOutput, 0)
	for len(data) >= 4 {
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 4 || length > len(data) {
			return nil, ErrInvalidPacketLength
		}
		// Skip actions other than the output.
		if binary.BigEndian.Uint16(data[0:2]) == OFPAT_OUTPUT {
			a := ActionOutput{}
			if err := a.UnmarshalBinary(data[:length]); err != nil {
				return nil, err
			}
			actions = append(actions, a)
		}
		data = data[length:]
	}

	return actions, nil
}
