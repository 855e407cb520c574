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
	"testing"

	"github.com/superkkt/forwarder/openflow"

	"github.com/stretchr/testify/require"
)

func TestSwitchWrite(t *testing.T) {
	w := new(messageRecorder)
	xid := uint32(0)
	sw := newSwitch(w, func() uint32 { xid++; return xid }, SwitchPolicy{})
	sw.setFeatures(Features{DPID: 1})

	require.NoError(t, sw.Write(openflow.NewPacketOut(0)))
	require.NoError(t, sw.RemoveFlows(macA))
	require.NoError(t, sw.RemoveFlows(nil))

	msgs := w.messages()
	require.Len(t, msgs, 3)
	require.Equal(t, uint32(1), msgs[0].(*openflow.PacketOut).TransactionID())

	fm := msgs[1].(*openflow.FlowMod)
	require.Equal(t, uint32(2), fm.TransactionID())
	require.Equal(t, openflow.FlowDelete, fm.Command)
	require.Equal(t, uint32(openflow.OFPFW_ALL&^openflow.OFPFW_DL_DST), fm.Match.Wildcards)
	require.Equal(t, macA.String(), fm.Match.DstMAC.String())
	require.Equal(t, uint32(openflow.OFPFW_ALL), msgs[2].(*openflow.FlowMod).Match.Wildcards)

	sw.close()
	require.True(t, sw.IsClosed())
	require.Equal(t, ErrClosedSwitch, sw.Write(openflow.NewPacketOut(0)))
	require.Len(t, w.messages(), 3)
}

func TestSwitchPolicy(t *testing.T) {
	policy := SwitchPolicy{
		NoFlood:   map[uint64]bool{2: true},
		Wildcards: map[uint64]uint32{2: 0x3000EF},
	}
	sw := newSwitch(new(messageRecorder), func() uint32 { return 1 }, policy)
	sw.setFeatures(Features{DPID: 1})
	require.True(t, sw.SupportsFlood())
	require.Equal(t, uint32(openflow.OFPFW_ALL), sw.DefaultWildcards())

	sw = newSwitch(new(messageRecorder), func() uint32 { return 1 }, policy)
	sw.setFeatures(Features{DPID: 2})
	require.False(t, sw.SupportsFlood())
	require.Equal(t, uint32(0x3000EF), sw.DefaultWildcards())
}

func TestSwitchPorts(t *testing.T) {
	sw := newTestSwitch(1, 3, 1, 2)
	// Reserved port numbers are ignored.
	sw.setPort(openflow.PhysicalPort{Number: openflow.OFPP_LOCAL})

	ports := sw.Ports()
	require.Len(t, ports, 3)
	require.Equal(t, []uint16{1, 2, 3}, []uint16{ports[0].Number, ports[1].Number, ports[2].Number})

	sw.removePort(2)
	_, ok := sw.Port(2)
	require.False(t, ok)
}
