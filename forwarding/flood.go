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

package forwarding

import (
	"sync"
	"time"

	"github.com/superkkt/forwarder/openflow"

	"github.com/pkg/errors"
)

type flooder struct {
	topology TopologyAdapter
	storm    *stormController
}

// newFlooder returns a flood handler. rate is the number of floods allowed per
// second on a switch, and zero means unlimited.
func newFlooder(topology TopologyAdapter, rate uint) *flooder {
	if topology == nil {
		panic("nil topology adapter")
	}

	f := &flooder{topology: topology}
	if rate > 0 {
		f.storm = newStormController(rate)
	}

	return f
}

// flood sends the packet out of all ports of sw except the ingress port. It
// returns whether a packet-out has been written to the switch.
func (r *flooder) flood(sw Switch, pi PacketIn) bool {
	if !r.topology.IsIngressBroadcastAllowed(sw.ID(), pi.InPort) {
		logger.Debugf("broadcast is not allowed on the ingress port: dpid=%v, port=%v", sw.ID(), pi.InPort)
		return false
	}
	if r.storm != nil && !r.storm.allow(sw.ID()) {
		logger.Infof("too many broadcasts: flooding is denied on dpid=%v to avoid the broadcast storm", sw.ID())
		return false
	}

	port := uint16(openflow.OFPP_ALL)
	if sw.SupportsFlood() {
		port = openflow.OFPP_FLOOD
	}
	if err := sendPacketOut(sw, pi, port); err != nil {
		logger.Errorf("failed to flood a packet: dpid=%v, port=%v, err=%v", sw.ID(), pi.InPort, err)
		writeErrors.WithLabelValues("flood").Inc()
		return false
	}

	return true
}

// sendPacketOut writes the packet of pi to the port of sw. The buffered packet is
// used if the switch has it, otherwise the raw frame is carried in the message.
func sendPacketOut(sw Switch, pi PacketIn, port uint16) error {
	out := openflow.NewPacketOut(0)
	out.InPort = pi.InPort
	out.AddAction(openflow.NewActionOutput(port))
	if pi.IsBuffered() {
		out.BufferID = pi.BufferID
	} else {
		out.Data = pi.Data
	}

	if err := sw.Write(out); err != nil {
		return errors.Wrap(err, "writing a packet-out")
	}
	packetOuts.Inc()

	return nil
}

type stormController struct {
	mutex sync.Mutex
	max   uint
	// Recent flood timestamps per switch.
	floods map[uint64][]time.Time
	now    func() time.Time
}

// max is the number of floods that are allowed per second.
func newStormController(max uint) *stormController {
	if max == 0 {
		panic("max should be greater than zero")
	}

	return &stormController{
		max:    max,
		floods: make(map[uint64][]time.Time),
		now:    time.Now,
	}
}

func (r *stormController) allow(dpid uint64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t := r.now()
	floods := append(r.floods[dpid], t)
	l := uint(len(floods))
	if l <= r.max {
		r.floods[dpid] = floods
		return true
	}
	// Only allows r.max floods per 1 second
	if t.Sub(floods[0]) > 1*time.Second {
		// Shrink (l > r.max)
		r.floods[dpid] = floods[l-r.max : l]
		return true
	}

	// Deny! r.floods should not be updated.
	return false
}
