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

package network

import (
	"bytes"
	"encoding"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/superkkt/forwarder/openflow"
	"github.com/superkkt/forwarder/openflow/transceiver"

	"github.com/pkg/errors"
)

var (
	ErrClosedSwitch = errors.New("already closed switch")
)

type Features struct {
	DPID       uint64
	NumBuffers uint32
	NumTables  uint8
}

// SwitchPolicy holds the switch capabilities that OpenFlow 1.0 does not advertise.
type SwitchPolicy struct {
	// Switches that do not implement the OFPP_FLOOD virtual port.
	NoFlood map[uint64]bool
	// Default wildcards of the switches. OFPFW_ALL is used if a switch is not here.
	Wildcards map[uint64]uint32
}

// Switch is an OpenFlow 1.0 switch connected to this controller.
type Switch struct {
	mutex    sync.RWMutex
	id       uint64
	valid    bool
	writer   transceiver.Writer
	xid      func() uint32
	features Features
	ports    map[uint16]openflow.PhysicalPort
	policy   SwitchPolicy
	closed   bool
}

func newSwitch(w transceiver.Writer, xid func() uint32, policy SwitchPolicy) *Switch {
	if w == nil {
		panic("Writer is nil")
	}
	if xid == nil {
		panic("XID generator is nil")
	}

	return &Switch{
		writer: w,
		xid:    xid,
		ports:  make(map[uint16]openflow.PhysicalPort),
		policy: policy,
	}
}

func (r *Switch) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Switch DPID=%v, Features=%+v, # of ports=%v, Connected=%v\n", r.id, r.features, len(r.ports), !r.closed))
	for _, p := range r.ports {
		buf.WriteString(fmt.Sprintf("\t%v\n", p.String()))
	}

	return buf.String()
}

func (r *Switch) ID() uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.id
}

func (r *Switch) setFeatures(f Features) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.id = f.DPID
	r.features = f
	r.valid = true
}

// isValid returns whether we have received the FEATURES_REPLY of this switch.
func (r *Switch) isValid() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.valid
}

func (r *Switch) Features() Features {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.features
}

func (r *Switch) SupportsFlood() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return !r.policy.NoFlood[r.id]
}

func (r *Switch) DefaultWildcards() uint32 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.policy.Wildcards[r.id]
	if !ok {
		return openflow.OFPFW_ALL
	}

	return v
}

// Port returns false if there is no port whose number is num.
func (r *Switch) Port(num uint16) (openflow.PhysicalPort, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.ports[num]
	return p, ok
}

// Ports returns the ports in ascending order of the port number.
func (r *Switch) Ports() []openflow.PhysicalPort {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p := make([]openflow.PhysicalPort, 0, len(r.ports))
	for _, v := range r.ports {
		p = append(p, v)
	}
	sort.Slice(p, func(i, j int) bool { return p[i].Number < p[j].Number })

	return p
}

func (r *Switch) setPort(p openflow.PhysicalPort) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if p.Number > openflow.OFPP_MAX {
		logger.Debugf("ignoring an invalid port number: %v", p.Number)
		return
	}
	r.ports[p.Number] = p
}

func (r *Switch) removePort(num uint16) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.ports, num)
}

// Write sends msg to the switch with a new transaction ID.
func (r *Switch) Write(msg encoding.BinaryMarshaler) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if msg == nil {
		panic("Message is nil")
	}
	if r.closed {
		return ErrClosedSwitch
	}
	if v, ok := msg.(interface {
		SetTransactionID(uint32)
	}); ok {
		v.SetTransactionID(r.xid())
	}

	return r.writer.Write(msg)
}

// RemoveFlows removes all the flows on the switch, or only the flows matching the
// destination mac if it is not nil.
func (r *Switch) RemoveFlows(mac net.HardwareAddr) error {
	fm := openflow.NewFlowMod(0, openflow.FlowDelete)
	if mac != nil {
		fm.Match.Wildcards &^= openflow.OFPFW_DL_DST
		fm.Match.DstMAC = mac
	}

	return r.Write(fm)
}

func (r *Switch) IsClosed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.closed
}

func (r *Switch) close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
}
