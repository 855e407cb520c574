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

package transceiver

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/superkkt/forwarder/openflow"
)

// ofp_header is version(1) + type(1) + length(2) + xid(4).
const frameHeaderLen = 8

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Stream frames OpenFlow messages over a switch connection. Reads and writes
// are serialized independently so a reader and a writer never block each other.
type Stream struct {
	conn io.ReadWriteCloser
	dl   deadliner // nil if conn has no deadlines

	rmu      sync.Mutex
	buf      *bufio.Reader
	rtimeout time.Duration

	wmu      sync.Mutex
	wtimeout time.Duration
}

// NewStream wraps channel with a read buffer of bufSize bytes. bufSize should
// be large enough to hold the largest expected message.
func NewStream(channel io.ReadWriteCloser, bufSize int) *Stream {
	s := &Stream{
		conn: channel,
		buf:  bufio.NewReaderSize(channel, bufSize),
	}
	if d, ok := channel.(deadliner); ok {
		s.dl = d
	}

	return s
}

func (r *Stream) RemoteAddr() string {
	if c, ok := r.conn.(interface{ RemoteAddr() net.Addr }); ok {
		return c.RemoteAddr().String()
	}
	return "unknown"
}

// SetReadTimeout limits how long ReadFrame waits for a whole frame. Zero means no limit.
func (r *Stream) SetReadTimeout(t time.Duration) {
	r.rmu.Lock()
	r.rtimeout = t
	r.rmu.Unlock()
}

// SetWriteTimeout limits how long a single Write may block. Zero means no limit.
func (r *Stream) SetWriteTimeout(t time.Duration) {
	r.wmu.Lock()
	r.wtimeout = t
	r.wmu.Unlock()
}

func deadlineOf(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// ReadFrame returns the next OpenFlow message including its header. A frame
// shorter than its own header yields openflow.ErrInvalidPacketLength.
func (r *Stream) ReadFrame() ([]byte, error) {
	r.rmu.Lock()
	defer r.rmu.Unlock()

	if r.dl != nil {
		r.dl.SetReadDeadline(deadlineOf(r.rtimeout))
	}

	header, err := r.buf.Peek(frameHeaderLen)
	if err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(header[2:4]))
	if length < frameHeaderLen {
		return nil, openflow.ErrInvalidPacketLength
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.buf, frame); err != nil {
		return nil, err
	}

	return frame, nil
}

func (r *Stream) Write(p []byte) (n int, err error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()

	if r.dl != nil {
		r.dl.SetWriteDeadline(deadlineOf(r.wtimeout))
	}

	return r.conn.Write(p)
}

func (r *Stream) Close() error {
	return r.conn.Close()
}
