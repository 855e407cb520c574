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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_decisions_total",
			Help: "Forwarding decisions made on packet-in events.",
		},
		[]string{"decision"},
	)
	flowMods = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_flow_mods_total",
			Help: "Flow-mod messages written to switches.",
		},
	)
	packetOuts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_packet_outs_total",
			Help: "Packet-out messages written to switches.",
		},
	)
	installErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_install_errors_total",
			Help: "Path install requests that failed.",
		},
	)
	writeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_write_errors_total",
			Help: "Failed writes to switches.",
		},
		[]string{"kind"},
	)
)

// RegisterMetrics registers the counters of this package to reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{decisions, flowMods, packetOuts, installErrors, writeErrors} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
