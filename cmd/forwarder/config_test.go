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

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/superkkt/forwarder/network"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

const sampleConfig = `
default:
  port: 6633
  log_level: debug
forwarding:
  idle_timeout: 10
  flow_cache_ttl: 3s
network:
  host_timeout: 1m
  links:
    - a: {dpid: 1, port: 1}
      b: {dpid: 2, port: 1}
  no_flood_switches: [3]
  fast_wildcards:
    - dpid: 1
      wildcards: 3145967
rest:
  port: 7070
`

func loadConfig(t *testing.T, conf string) {
	viper.Reset()
	setDefaults()
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBufferString(conf)); err != nil {
		t.Fatal(err)
	}
}

func TestConfig(t *testing.T) {
	loadConfig(t, sampleConfig)
	defer viper.Reset()

	if err := validateConfig(); err != nil {
		t.Fatal(err)
	}

	c, err := controllerConfig()
	if err != nil {
		t.Fatal(err)
	}
	expected := network.ControllerConfig{
		Policy: network.SwitchPolicy{
			NoFlood:   map[uint64]bool{3: true},
			Wildcards: map[uint64]uint32{1: 0x3000EF},
		},
		Links: []network.LinkParam{
			{A: network.Port{DPID: 1, Number: 1}, B: network.Port{DPID: 2, Number: 1}},
		},
		HostTimeout: time.Minute,
	}
	if diff := cmp.Diff(expected, c); diff != "" {
		t.Fatalf("Unexpected controller config (-want +got):\n%s", diff)
	}

	ic := installerConfig(nil)
	if ic.IdleTimeout != 10 || ic.HardTimeout != 0 || ic.Priority != 100 || ic.CacheTTL != 3*time.Second {
		t.Fatalf("Unexpected installer config: %v", spew.Sdump(ic))
	}
}

func TestInvalidConfig(t *testing.T) {
	defer viper.Reset()

	invalid := []string{
		"default: {port: 0}",
		"forwarding: {priority: 70000}",
		"forwarding: {flood_rate: -1}",
		"network: {host_timeout: 0s}",
		"rest: {tls: true}",
		"network: {fast_wildcards: [{wildcards: 1}]}",
	}
	for _, v := range invalid {
		loadConfig(t, v)
		if err := validateConfig(); err == nil {
			t.Fatalf("Expected an error for %q", v)
		}
	}
}

func TestLogLevel(t *testing.T) {
	if v := getLogLevel("warning"); v != logging.WARNING {
		t.Fatalf("Expected WARNING, got=%v", v)
	}
	if v := getLogLevel("unknown"); v != defaultLogLevel {
		t.Fatalf("Expected the default level, got=%v", v)
	}
}
