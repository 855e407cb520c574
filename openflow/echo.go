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

type Hello struct {
	Message
}

func NewHello(xid uint32) *Hello {
	return &Hello{Message: NewMessage(OFPT_HELLO, xid)}
}

// Echo is used for both ECHO_REQUEST and ECHO_REPLY.
type Echo struct {
	Message
	Data []byte
}

func NewEchoRequest(xid uint32) *Echo {
	return &Echo{Message: NewMessage(OFPT_ECHO_REQUEST, xid)}
}

func NewEchoReply(xid uint32) *Echo {
	return &Echo{Message: NewMessage(OFPT_ECHO_REPLY, xid)}
}

func (r *Echo) MarshalBinary() ([]byte, error) {
	r.SetPayload(r.Data)
	return r.Message.MarshalBinary()
}

func (r *Echo) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}
	r.Data = append([]byte(nil), r.Payload()...)

	return nil
}
