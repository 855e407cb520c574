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
	"context"
	"net"
	"time"

	"github.com/superkkt/forwarder/forwarding"
	"github.com/superkkt/forwarder/openflow"
	"github.com/superkkt/forwarder/openflow/transceiver"

	"github.com/pkg/errors"
)

var (
	errNotNegotiated = errors.New("invalid command on non-negotiated session")
)

const (
	switchExplorerInterval = 3 * time.Minute
	streamBufferSize       = 0xFFFF
	etherTypeLLDP          = 0x88CC
	etherTypeBDDP          = 0x8942
)

// PacketInListener receives the PACKET_IN events that survived the session level filtering.
type PacketInListener interface {
	OnPacketIn(sw forwarding.Switch, pi forwarding.PacketIn) forwarding.Decision
}

type session struct {
	negotiated  bool
	sw          *Switch
	transceiver *transceiver.Transceiver
	topology    *Topology
	hosts       *HostTable
	listener    PacketInListener
	// A cancel function to disconnect this session.
	canceller context.CancelFunc
}

type sessionConfig struct {
	conn     net.Conn
	topology *Topology
	hosts    *HostTable
	listener PacketInListener
	policy   SwitchPolicy
}

func checkParam(c sessionConfig) {
	if c.conn == nil {
		panic("Conn is nil")
	}
	if c.topology == nil {
		panic("Topology is nil")
	}
	if c.hosts == nil {
		panic("HostTable is nil")
	}
	if c.listener == nil {
		panic("Listener is nil")
	}
}

func newSession(c sessionConfig) *session {
	checkParam(c)

	stream := transceiver.NewStream(c.conn, streamBufferSize)
	v := new(session)
	v.topology = c.topology
	v.hosts = c.hosts
	v.listener = c.listener
	v.transceiver = transceiver.NewTransceiver(stream, v)
	v.sw = newSwitch(v.transceiver, v.transceiver.NewXID, c.policy)

	return v
}

func (r *session) OnHello(w transceiver.Writer, v *openflow.Hello) error {
	logger.Debugf("HELLO (ver=%v) is received", v.Version())

	// Ignore duplicated HELLO messages
	if r.negotiated {
		return nil
	}
	r.negotiated = true

	if err := w.Write(openflow.NewHello(r.transceiver.NewXID())); err != nil {
		return errors.Wrap(err, "failed to send HELLO")
	}
	if err := w.Write(openflow.NewSetConfig(r.transceiver.NewXID())); err != nil {
		return errors.Wrap(err, "failed to send SET_CONFIG")
	}
	if err := w.Write(openflow.NewFeaturesRequest(r.transceiver.NewXID())); err != nil {
		return errors.Wrap(err, "failed to send FEATURES_REQUEST")
	}
	// Start from an empty flow table.
	if err := w.Write(openflow.NewFlowMod(r.transceiver.NewXID(), openflow.FlowDelete)); err != nil {
		return errors.Wrap(err, "failed to remove all flows")
	}

	return nil
}

func (r *session) OnError(w transceiver.Writer, v *openflow.Error) error {
	// Is this the CHECK_OVERLAP error?
	if v.Class == openflow.OFPET_FLOW_MOD_FAILED && v.Code == openflow.OFPFMFC_OVERLAP {
		logger.Debug("FLOW_MOD is overlapped")
		return nil
	}

	logger.Errorf("ERROR (switch=%v, class=%v, code=%v, data=%v)", r.sw, v.Class, v.Code, v.Data)
	if !r.negotiated {
		return errNotNegotiated
	}

	return nil
}

func (r *session) OnFeaturesReply(w transceiver.Writer, v *openflow.FeaturesReply) error {
	logger.Debugf("FEATURES_REPLY (DPID=%v, NumBufs=%v, NumTables=%v, NumPorts=%v)", v.DPID, v.NumBuffers, v.NumTables, len(v.Ports))

	if !r.negotiated {
		return errNotNegotiated
	}

	// Not the first FEATURES_REPLY: a response for our switch explorer.
	if r.sw.isValid() {
		logger.Debug("received FEATURES_REPLY that is a response for our switch explorer's probe")
		for _, p := range v.Ports {
			r.sw.setPort(p)
		}
		r.topology.portChanged()
		return nil
	}

	// Already connected switch?
	if _, ok := r.topology.lookupSwitch(v.DPID); ok {
		if cancel, ok := popCanceller(v.DPID); ok {
			// Disconnect the previous session so that the switch can reconnect with a
			// fresh connection. Some switches open a new main connection after a
			// momentary link failure without closing the old one.
			cancel()
		}
		return errors.New("duplicated switch DPID (aux. connection is not supported yet)")
	}

	r.sw.setFeatures(Features{
		DPID:       v.DPID,
		NumBuffers: v.NumBuffers,
		NumTables:  v.NumTables,
	})
	for _, p := range v.Ports {
		r.sw.setPort(p)
	}
	if err := r.topology.addSwitch(r.sw); err != nil {
		return err
	}
	pushCanceller(v.DPID, r.canceller)
	logger.Infof("new switch is connected: %v", r.sw)

	return nil
}

func (r *session) OnPortStatus(w transceiver.Writer, v *openflow.PortStatus) error {
	logger.Debug("PORT_STATUS is received")

	if !r.negotiated {
		return errNotNegotiated
	}
	if !r.sw.isValid() {
		logger.Debug("ignoring PORT_STATUS from an uninitialized switch")
		return nil
	}

	port := v.Port
	logger.Debugf("Switch=%v, PortNum=%v, Reason=%v, AdminUp=%v, LinkUp=%v", r.sw.ID(), port.Number, v.Reason, !port.IsPortDown(), !port.IsLinkDown())

	up := v.Reason != openflow.OFPPR_DELETE && !port.IsPortDown() && !port.IsLinkDown()
	if v.Reason == openflow.OFPPR_DELETE {
		r.sw.removePort(port.Number)
	} else {
		r.sw.setPort(port)
	}
	if !up {
		r.hosts.RemovePort(r.sw.ID(), port.Number)
	}
	r.topology.portChanged()

	return nil
}

func (r *session) OnFlowRemoved(w transceiver.Writer, v *openflow.FlowRemoved) error {
	logger.Debugf("FLOW_REMOVED is received (switch=%v, cookie=%#x, reason=%v)", r.sw.ID(), v.Cookie, v.Reason)

	if !r.negotiated {
		return errNotNegotiated
	}
	if forwarding.CookieAppID(v.Cookie) == forwarding.ForwardingAppID {
		logger.Debugf("forwarding flow is removed: switch=%v, match=%v, duration=%v, packets=%v, bytes=%v",
			r.sw.ID(), v.Match, v.Duration, v.PacketCount, v.ByteCount)
	}

	return nil
}

func etherType(frame []byte) uint16 {
	if len(frame) < 14 {
		return 0
	}

	return uint16(frame[12])<<8 | uint16(frame[13])
}

func (r *session) learn(port uint16, frame []byte) {
	if len(frame) < 14 {
		return
	}
	t := etherType(frame)
	if t == etherTypeLLDP || t == etherTypeBDDP {
		return
	}
	// Host locations are only learned from edge ports facing the hosts.
	if r.topology.IsInterSwitchPort(r.sw.ID(), port) {
		return
	}
	src := net.HardwareAddr(frame[6:12])
	// Multicast source address is invalid.
	if src[0]&0x01 != 0 {
		return
	}
	r.hosts.Learn(r.sw.ID(), port, src)
}

func (r *session) OnPacketIn(w transceiver.Writer, v *openflow.PacketIn) error {
	if !r.negotiated {
		return errNotNegotiated
	}
	if !r.sw.isValid() {
		logger.Debug("ignoring PACKET_IN from an uninitialized switch")
		return nil
	}
	logger.Debugf("PACKET_IN is received (switch=%v, inport=%v, reason=%v, bufferID=%#x, length=%v)",
		r.sw.ID(), v.InPort, v.Reason, v.BufferID, len(v.Data))

	if _, ok := r.sw.Port(v.InPort); !ok {
		logger.Errorf("failed to find a port: switch=%v, portNum=%v, so ignore PACKET_IN..", r.sw.ID(), v.InPort)
		return nil
	}
	// Do nothing if the ingress port is an edge between switches and is disabled by the spanning tree.
	if r.topology.IsInterSwitchPort(r.sw.ID(), v.InPort) && !r.topology.IsIngressBroadcastAllowed(r.sw.ID(), v.InPort) {
		logger.Debugf("ignoring PACKET_IN from %v:%v by STP", r.sw.ID(), v.InPort)
		return nil
	}
	r.learn(v.InPort, v.Data)

	decision := r.listener.OnPacketIn(r.sw, forwarding.PacketIn{
		Switch:   r.sw.ID(),
		InPort:   v.InPort,
		BufferID: v.BufferID,
		Data:     v.Data,
	})
	logger.Debugf("PACKET_IN from %v:%v is processed: %v", r.sw.ID(), v.InPort, decision)

	return nil
}

func (r *session) Run(ctx context.Context) {
	stopExplorer := r.runSwitchExplorer(ctx)
	logger.Debugf("started a new switch explorer")

	sessionCtx, canceller := context.WithCancel(ctx)
	defer canceller()
	// This canceller will be used to disconnect this session when it is necessary.
	r.canceller = canceller

	if err := r.transceiver.Run(sessionCtx); err != nil {
		logger.Errorf("openflow transceiver is unexpectedly closed: %v", err)
	}
	logger.Infof("disconnected switch (%v)", r.sw)

	stopExplorer()
	r.transceiver.Close()
	r.sw.close()
	if r.sw.isValid() {
		popCanceller(r.sw.ID())
		r.topology.removeSwitch(r.sw)
		r.hosts.RemoveSwitch(r.sw.ID())
	}
}

func (r *session) runSwitchExplorer(ctx context.Context) context.CancelFunc {
	subCtx, canceller := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(switchExplorerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				logger.Debugf("terminating the switch explorer: %v", r.sw)
				return
			case <-ticker.C:
			}

			if !r.sw.isValid() {
				logger.Debug("skip to execute the switch explorer due to incomplete switch status")
				continue
			}
			// OF10 provides ports information in the FEATURES_REPLY packet.
			if err := r.sw.Write(openflow.NewFeaturesRequest(0)); err != nil {
				logger.Errorf("failed to send a features request: %v", err)
				continue
			}
			logger.Debugf("sent a FEATURES_REQUEST packet to %v", r.sw)
		}
	}()

	return canceller
}
