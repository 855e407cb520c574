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
)

const (
	OFPET_HELLO_FAILED    = 0
	OFPET_BAD_REQUEST     = 1
	OFPET_BAD_ACTION      = 2
	OFPET_FLOW_MOD_FAILED = 3
	OFPET_PORT_MOD_FAILED = 4
	OFPET_QUEUE_OP_FAILED = 5
)

const (
	OFPFMFC_ALL_TABLES_FULL = 0
	OFPFMFC_OVERLAP         = 1
)

type Error struct {
	Message
	Class uint16
	Code  uint16
	Data  []byte
}

func (r *Error) String() string {
	return fmt.Sprintf("class=%v, code=%v", r.Class, r.Code)
}

func (r *Error) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.Class = binary.BigEndian.Uint16(payload[0:2])
	r.Code = binary.BigEndian.Uint16(payload[2:4])
	r.Data = append([]byte(nil), payload[4:]...)

	return nil
}
