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
	"github.com/superkkt/forwarder/forwarding"
	"github.com/superkkt/forwarder/network"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type switchWildcards struct {
	DPID      uint64 `mapstructure:"dpid"`
	Wildcards uint32 `mapstructure:"wildcards"`
}

func setDefaults() {
	viper.SetDefault("default.port", 6633)
	viper.SetDefault("default.log_level", "info")
	viper.SetDefault("forwarding.flow_removed", true)
	viper.SetDefault("forwarding.idle_timeout", 5)
	viper.SetDefault("forwarding.hard_timeout", 0)
	viper.SetDefault("forwarding.priority", 100)
	viper.SetDefault("forwarding.flow_cache_ttl", "2s")
	viper.SetDefault("forwarding.flood_rate", 100)
	viper.SetDefault("network.host_timeout", "5m")
	viper.SetDefault("rest.port", 7070)
}

func initConfig() {
	setDefaults()
	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("failed to read the config file: %v", err)
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the WRITE operation to avoid reading empty config.
		if e.Op != fsnotify.Write {
			return
		}

		if loggerLeveled != nil {
			// Set log level for all modules
			loggerLeveled.SetLevel(getLogLevel(viper.GetString("default.log_level")), "")
		}
	})
	viper.WatchConfig()
	if err := validateConfig(); err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}
}

func validateConfig() error {
	if port := viper.GetInt("default.port"); port <= 0 || port > 0xFFFF {
		return errors.New("invalid default.port")
	}
	if len(viper.GetString("default.log_level")) == 0 {
		return errors.New("invalid default.log_level")
	}
	for _, key := range []string{"forwarding.idle_timeout", "forwarding.hard_timeout", "forwarding.priority"} {
		if v := viper.GetInt(key); v < 0 || v > 0xFFFF {
			return errors.Errorf("invalid %v", key)
		}
	}
	if viper.GetDuration("forwarding.flow_cache_ttl") < 0 {
		return errors.New("invalid forwarding.flow_cache_ttl")
	}
	if viper.GetInt("forwarding.flood_rate") < 0 {
		return errors.New("invalid forwarding.flood_rate")
	}
	if viper.GetDuration("network.host_timeout") <= 0 {
		return errors.New("invalid network.host_timeout")
	}
	if port := viper.GetInt("rest.port"); port <= 0 || port > 0xFFFF {
		return errors.New("invalid rest.port")
	}
	if viper.GetBool("rest.tls") {
		if len(viper.GetString("rest.cert_file")) == 0 || len(viper.GetString("rest.key_file")) == 0 {
			return errors.New("invalid rest.cert_file or rest.key_file")
		}
	}
	if _, err := controllerConfig(); err != nil {
		return err
	}

	return nil
}

func installerConfig(switches forwarding.SwitchFinder) forwarding.InstallerConfig {
	return forwarding.InstallerConfig{
		Switches:    switches,
		IdleTimeout: uint16(viper.GetInt("forwarding.idle_timeout")),
		HardTimeout: uint16(viper.GetInt("forwarding.hard_timeout")),
		Priority:    uint16(viper.GetInt("forwarding.priority")),
		CacheTTL:    viper.GetDuration("forwarding.flow_cache_ttl"),
	}
}

func controllerConfig() (network.ControllerConfig, error) {
	c := network.ControllerConfig{
		HostTimeout: viper.GetDuration("network.host_timeout"),
		Policy: network.SwitchPolicy{
			NoFlood:   make(map[uint64]bool),
			Wildcards: make(map[uint64]uint32),
		},
	}

	if err := viper.UnmarshalKey("network.links", &c.Links); err != nil {
		return network.ControllerConfig{}, errors.Wrap(err, "invalid network.links")
	}
	var noFlood []uint64
	if err := viper.UnmarshalKey("network.no_flood_switches", &noFlood); err != nil {
		return network.ControllerConfig{}, errors.Wrap(err, "invalid network.no_flood_switches")
	}
	for _, dpid := range noFlood {
		c.Policy.NoFlood[dpid] = true
	}
	var wildcards []switchWildcards
	if err := viper.UnmarshalKey("network.fast_wildcards", &wildcards); err != nil {
		return network.ControllerConfig{}, errors.Wrap(err, "invalid network.fast_wildcards")
	}
	for _, v := range wildcards {
		if v.DPID == 0 {
			return network.ControllerConfig{}, errors.New("invalid network.fast_wildcards: missing dpid")
		}
		c.Policy.Wildcards[v.DPID] = v.Wildcards
	}

	return c, nil
}
