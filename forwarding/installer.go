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
	"fmt"
	"time"

	"github.com/superkkt/forwarder/openflow"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

type InstallerConfig struct {
	Switches    SwitchFinder
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	// Flows written within CacheTTL are not written again. Zero disables the cache.
	CacheTTL time.Duration
}

// Installer writes the flow-mods of an install request to the switches along the path.
type Installer struct {
	config InstallerConfig
	cache  *flowCache
}

func NewInstaller(c InstallerConfig) (*Installer, error) {
	if c.Switches == nil {
		return nil, errors.New("nil switch finder")
	}

	v := &Installer{config: c}
	if c.CacheTTL > 0 {
		v.cache = newFlowCache(c.CacheTTL)
	}

	return v, nil
}

type hop struct {
	dpid    uint64
	inPort  uint16
	outPort uint16
}

func buildHops(req InstallRequest) ([]hop, error) {
	if req.Route == nil || len(req.Route.Links) == 0 {
		if req.Src.Switch != req.Dst.Switch {
			return nil, fmt.Errorf("missing route from %v to %v", req.Src.Switch, req.Dst.Switch)
		}
		return []hop{{dpid: req.Src.Switch, inPort: req.Src.Port, outPort: req.Dst.Port}}, nil
	}

	result := make([]hop, 0, len(req.Route.Links)+1)
	cur := SwitchPort{Switch: req.Src.Switch, Port: req.Src.Port}
	for _, link := range req.Route.Links {
		if link.Src.Switch != cur.Switch {
			return nil, fmt.Errorf("broken route: expected a link from %v, got=%v", cur.Switch, link.Src.Switch)
		}
		result = append(result, hop{dpid: cur.Switch, inPort: cur.Port, outPort: link.Src.Port})
		cur = link.Dst
	}
	if cur.Switch != req.Dst.Switch {
		return nil, fmt.Errorf("broken route: expected the last switch %v, got=%v", req.Dst.Switch, cur.Switch)
	}

	return append(result, hop{dpid: cur.Switch, inPort: cur.Port, outPort: req.Dst.Port}), nil
}

func reverseHops(hops []hop) []hop {
	result := make([]hop, len(hops))
	for i, h := range hops {
		result[len(hops)-1-i] = hop{dpid: h.dpid, inPort: h.outPort, outPort: h.inPort}
	}

	return result
}

func (r *Installer) Install(req InstallRequest) error {
	if req.Match == nil {
		return errors.New("nil match")
	}
	if req.Src.Equal(req.Dst) {
		return fmt.Errorf("same source and destination: %v", req.Src)
	}

	hops, err := buildHops(req)
	if err != nil {
		return err
	}
	switches, err := r.lookup(hops)
	if err != nil {
		return err
	}
	if err := r.writeFlows(switches, hops, req.Match, req.BufferID, req); err != nil {
		return err
	}
	if req.Flush {
		rev := reverseHops(hops)
		if err := r.writeFlows(reverseSwitches(switches), rev, req.Match.Reverse(), openflow.NoBuffer, req); err != nil {
			return err
		}
	}
	if req.PacketIn != nil {
		r.pushPacket(switches, hops, *req.PacketIn)
	}

	return nil
}

func (r *Installer) lookup(hops []hop) ([]Switch, error) {
	result := make([]Switch, len(hops))
	for i, h := range hops {
		sw, ok := r.config.Switches.Switch(h.dpid)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownSwitch, "dpid=%v", h.dpid)
		}
		result[i] = sw
	}

	return result, nil
}

func reverseSwitches(switches []Switch) []Switch {
	result := make([]Switch, len(switches))
	for i, sw := range switches {
		result[len(switches)-1-i] = sw
	}

	return result
}

// writeFlows writes the flow-mods from the last hop to the first one so that the
// downstream switches are ready before the first switch starts forwarding.
func (r *Installer) writeFlows(switches []Switch, hops []hop, match *Match, bufferID uint32, req InstallRequest) error {
	for i := len(hops) - 1; i >= 0; i-- {
		sw, h := switches[i], hops[i]
		m := match.ForSwitch(sw, h.inPort)

		if r.cache != nil {
			ok, err := r.cache.inProgress(h.dpid, m, h.outPort)
			if err != nil {
				return err
			}
			if ok {
				logger.Debugf("skip to install the duplicated flow: dpid=%v, outPort=%v, match=%v", h.dpid, h.outPort, m.String())
				continue
			}
		}

		fm := openflow.NewFlowMod(0, req.Command)
		fm.Match = &m
		fm.Cookie = req.Cookie
		fm.IdleTimeout = r.config.IdleTimeout
		fm.HardTimeout = r.config.HardTimeout
		fm.Priority = r.config.Priority
		// The buffered packet is only meaningful on the first switch.
		if i == 0 {
			fm.BufferID = bufferID
		}
		if req.FlowRemoved {
			fm.Flags |= openflow.OFPFF_SEND_FLOW_REM
		}
		fm.AddAction(openflow.NewActionOutput(h.outPort))

		if err := sw.Write(fm); err != nil {
			writeErrors.WithLabelValues("flow_mod").Inc()
			return errors.Wrapf(err, "writing a flow-mod to dpid=%v", h.dpid)
		}
		flowMods.Inc()
		logger.Debugf("installed a flow: dpid=%v, inPort=%v, outPort=%v, cookie=0x%x", h.dpid, h.inPort, h.outPort, req.Cookie)

		if r.cache != nil {
			if err := r.cache.add(h.dpid, m, h.outPort); err != nil {
				return err
			}
		}
	}

	return nil
}

// pushPacket sends the packet that triggered the installation out of the egress
// port of the hop on the ingress switch.
func (r *Installer) pushPacket(switches []Switch, hops []hop, pi PacketIn) {
	for i, h := range hops {
		if h.dpid != pi.Switch {
			continue
		}
		if err := sendPacketOut(switches[i], pi, h.outPort); err != nil {
			logger.Errorf("failed to push the packet: dpid=%v, port=%v, err=%v", h.dpid, h.outPort, err)
			writeErrors.WithLabelValues("packet_out").Inc()
		}
		return
	}
}

type flowCache struct {
	cache      *lru.Cache
	expiration time.Duration
	now        func() time.Time
}

func newFlowCache(expiration time.Duration) *flowCache {
	c, err := lru.New(8192)
	if err != nil {
		panic(fmt.Sprintf("failed to init a LRU flow cache: %v", err))
	}

	return &flowCache{
		cache:      c,
		expiration: expiration,
		now:        time.Now,
	}
}

func (r *flowCache) key(dpid uint64, match openflow.Match, port uint16) (string, error) {
	m, err := match.MarshalBinary()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v/%x/%v", dpid, m, port), nil
}

func (r *flowCache) add(dpid uint64, match openflow.Match, port uint16) error {
	key, err := r.key(dpid, match, port)
	if err != nil {
		return err
	}
	// Update if the key already exists.
	r.cache.Add(key, r.now())

	return nil
}

func (r *flowCache) inProgress(dpid uint64, match openflow.Match, port uint16) (ok bool, err error) {
	key, err := r.key(dpid, match, port)
	if err != nil {
		return false, err
	}

	v, ok := r.cache.Get(key)
	if !ok {
		return false, nil
	}
	// Timeout?
	if r.now().Sub(v.(time.Time)) > r.expiration {
		r.cache.Remove(key)
		return false, nil
	}

	return true, nil
}

func (r *flowCache) purge() {
	r.cache.Purge()
}

// Purge forgets the recently installed flows so that the next request for any of
// them is written to the switches again. It should be called after the flows are
// removed from the switches.
func (r *Installer) Purge() {
	if r.cache == nil {
		return
	}
	r.cache.purge()
	logger.Debug("purged the flow cache")
}
