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
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("network")
)

const (
	minExpireInterval = 1 * time.Second
)

type ControllerConfig struct {
	Policy SwitchPolicy
	// Static inter-switch links.
	Links       []LinkParam
	HostTimeout time.Duration
}

type Controller struct {
	mutex    sync.RWMutex
	topology *Topology
	hosts    *HostTable
	policy   SwitchPolicy
	timeout  time.Duration
	listener PacketInListener
}

func NewController(c ControllerConfig) (*Controller, error) {
	if c.HostTimeout <= 0 {
		return nil, errors.New("invalid host timeout")
	}

	topo := NewTopology()
	for _, l := range c.Links {
		if _, err := topo.AddLink(l); err != nil {
			return nil, errors.Wrapf(err, "invalid link %v", l.ID())
		}
	}
	hosts := NewHostTable(topo, c.HostTimeout)
	// Island labels can change whenever the topology is changed.
	topo.Subscribe(hosts.Relabel)

	return &Controller{
		topology: topo,
		hosts:    hosts,
		policy:   c.Policy,
		timeout:  c.HostTimeout,
	}, nil
}

func (r *Controller) Topology() *Topology {
	return r.topology
}

func (r *Controller) Hosts() *HostTable {
	return r.hosts
}

// SetPacketInListener should be called before adding any connection.
func (r *Controller) SetPacketInListener(l PacketInListener) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.listener = l
}

func (r *Controller) AddConnection(ctx context.Context, c net.Conn) {
	r.mutex.RLock()
	listener := r.listener
	r.mutex.RUnlock()

	conf := sessionConfig{
		conn:     c,
		topology: r.topology,
		hosts:    r.hosts,
		listener: listener,
		policy:   r.policy,
	}
	session := newSession(conf)
	go session.Run(ctx)
}

// Run expires the stale hosts until ctx is canceled.
func (r *Controller) Run(ctx context.Context) {
	interval := r.timeout / 2
	if interval < minExpireInterval {
		interval = minExpireInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("terminating the host expiration loop")
			return
		case <-ticker.C:
			r.hosts.Expire()
		}
	}
}

// RemoveFlows removes the flows on all the switches. Only the flows whose
// destination is mac are removed if mac is not nil.
func (r *Controller) RemoveFlows(mac net.HardwareAddr) error {
	var failed error
	for _, sw := range r.topology.Switches() {
		if err := sw.RemoveFlows(mac); err != nil {
			logger.Errorf("failed to remove flows from %v: %v", sw, err)
			failed = errors.Wrapf(err, "failed to remove flows from %v", sw)
			continue
		}
		if mac != nil {
			logger.Debugf("removed flows whose destination MAC address is %v on %v", mac, sw)
		} else {
			logger.Debugf("removed all flows on %v", sw)
		}
	}

	return failed
}

func (r *Controller) String() string {
	return r.topology.String()
}
