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
	"github.com/superkkt/forwarder/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("forwarding")
)

var (
	ErrUnknownSource       = errors.New("unknown source device")
	ErrUnknownSourceIsland = errors.New("unknown island of the source switch")
	ErrUnknownSwitch       = errors.New("unknown switch")
)

const (
	ethTypeLLDP = 0x88CC
	// Broadcast domain discovery protocol.
	ethTypeBDDP = 0x8942
)

type Decision int

const (
	NoAction Decision = iota
	Flood
	Forward
	Drop
)

func (r Decision) String() string {
	switch r {
	case NoAction:
		return "no_action"
	case Flood:
		return "flood"
	case Forward:
		return "forward"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

type Config struct {
	Devices   DeviceLocator
	Topology  TopologyAdapter
	Routes    RouteProvider
	Installer PathInstaller
	// FlowRemoved requests the flow removed notification on the installed flows.
	FlowRemoved bool
	// FloodRate is the number of floods allowed per second on a switch. Zero means unlimited.
	FloodRate uint
}

// Engine decides how to handle the packets that do not match any flow on a switch.
type Engine struct {
	config  Config
	flooder *flooder
}

func NewEngine(c Config) (*Engine, error) {
	if c.Devices == nil {
		return nil, errors.New("nil device locator")
	}
	if c.Topology == nil {
		return nil, errors.New("nil topology adapter")
	}
	if c.Routes == nil {
		return nil, errors.New("nil route provider")
	}
	if c.Installer == nil {
		return nil, errors.New("nil path installer")
	}

	return &Engine{
		config:  c,
		flooder: newFlooder(c.Topology, c.FloodRate),
	}, nil
}

// OnPacketIn handles pi received from sw. All errors are logged and absorbed here,
// and the returned decision is informational.
func (r *Engine) OnPacketIn(sw Switch, pi PacketIn) Decision {
	d := r.decide(sw, pi)
	decisions.WithLabelValues(d.String()).Inc()

	return d
}

func (r *Engine) decide(sw Switch, pi PacketIn) Decision {
	match, err := NewMatch(pi.Data, pi.InPort)
	if err != nil {
		logger.Errorf("failed to decode a packet-in: dpid=%v, port=%v, err=%v", pi.Switch, pi.InPort, err)
		return Drop
	}
	if match.EtherType == ethTypeLLDP || match.EtherType == ethTypeBDDP {
		// Link discovery frames are not ours.
		return NoAction
	}
	match.Wildcards = Wildcard(sw.DefaultWildcards())

	if match.IsBroadcast() {
		logger.Debugf("flooding a broadcast: dpid=%v, port=%v, dst=%v", pi.Switch, pi.InPort, match.DstMAC)
		r.flooder.flood(sw, pi)
		return Flood
	}

	// The snapshot is read only once for a packet.
	snapshot := r.config.Devices.Snapshot()
	dst, ok := snapshot.Device(match.DstMAC)
	if !ok {
		logger.Debugf("flooding a packet to unknown destination: dpid=%v, port=%v, dst=%v", pi.Switch, pi.InPort, match.DstMAC)
		r.flooder.flood(sw, pi)
		return Flood
	}
	src, ok := snapshot.Device(match.SrcMAC)
	if !ok {
		logger.Errorf("dropping a packet: %v", errors.Wrapf(ErrUnknownSource, "mac=%v", match.SrcMAC))
		return Drop
	}
	island, ok := r.config.Topology.IslandOf(pi.Switch)
	if !ok {
		logger.Errorf("dropping a packet: %v", errors.Wrapf(ErrUnknownSourceIsland, "dpid=%v", pi.Switch))
		return Drop
	}

	target, ok := firstInIsland(dst, island)
	if !ok {
		logger.Debugf("flooding a packet: no attachment point of %v in island %v", dst.MAC, island)
		r.flooder.flood(sw, pi)
		return Flood
	}
	if target.Equal(AttachmentPoint{Switch: pi.Switch, Port: pi.InPort}) {
		logger.Debugf("destination %v is on the ingress port: dpid=%v, port=%v", dst.MAC, pi.Switch, pi.InPort)
		return NoAction
	}

	if n := r.forward(snapshot, src, dst, match, pi); n == 0 {
		return NoAction
	}

	return Forward
}

func firstInIsland(d Device, island IslandID) (AttachmentPoint, bool) {
	for _, ap := range d.AttachmentPoints {
		if ap.HasIsland && ap.Island == island {
			return ap, true
		}
	}

	return AttachmentPoint{}, false
}

func withIsland(aps []AttachmentPoint) []AttachmentPoint {
	result := make([]AttachmentPoint, 0, len(aps))
	for _, ap := range aps {
		if ap.HasIsland {
			result = append(result, ap)
		}
	}

	return result
}

// forward installs the paths for the attachment point pairs of src and dst that
// are in the same island, and returns the number of the installed paths.
func (r *Engine) forward(snapshot DeviceSnapshot, src, dst Device, match *Match, pi PacketIn) int {
	srcAPs := withIsland(snapshot.SortedAttachmentPoints(src))
	dstAPs := withIsland(snapshot.SortedAttachmentPoints(dst))

	count := 0
	i, j := 0, 0
	for i < len(srcAPs) && j < len(dstAPs) {
		s, d := srcAPs[i], dstAPs[j]
		if s.Island < d.Island {
			i++
			continue
		}
		if s.Island > d.Island {
			j++
			continue
		}

		if !s.Equal(d) {
			route, ok := r.config.Routes.Route(s.Switch, d.Switch)
			local := s.Switch == d.Switch
			if ok || local {
				req := r.newInstallRequest(match, s, d, pi)
				if ok {
					req.Route = route
				}
				if err := r.config.Installer.Install(req); err != nil {
					logger.Errorf("failed to install a path from %v to %v: %v", s, d, err)
					installErrors.Inc()
				} else {
					count++
				}
			} else {
				logger.Debugf("no route from %v to %v", s, d)
			}
		}
		i++
		j++
	}

	return count
}

func (r *Engine) newInstallRequest(match *Match, src, dst AttachmentPoint, pi PacketIn) InstallRequest {
	return InstallRequest{
		Match:       match,
		Src:         src,
		Dst:         dst,
		BufferID:    openflow.NoBuffer,
		Cookie:      MakeCookie(ForwardingAppID, 0),
		Command:     openflow.FlowAdd,
		FlowRemoved: r.config.FlowRemoved,
		Flush:       false,
		PacketIn:    &pi,
	}
}
