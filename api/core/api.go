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

package core

import (
	"context"
	"encoding/json"
	"net"
	"strconv"

	"github.com/superkkt/forwarder/api"
	"github.com/superkkt/forwarder/network"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("core")
)

type Topology interface {
	Switches() []*network.Switch
	Links() []network.Link
	AddLink(network.LinkParam) (id string, err error)
	RemoveLink(id string) (removed bool)
}

type HostTable interface {
	Hosts() []network.Host
}

// FlowCache remembers the recently installed flows.
type FlowCache interface {
	Purge()
}

type API struct {
	api.Server
	Topology  Topology
	Hosts     HostTable
	FlowCache FlowCache
}

func (r *API) validate() error {
	if r.Topology == nil {
		return errors.New("nil topology")
	}
	if r.Hosts == nil {
		return errors.New("nil host table")
	}
	if r.FlowCache == nil {
		return errors.New("nil flow cache")
	}

	return nil
}

func (r *API) routes() []*rest.Route {
	return []*rest.Route{
		rest.Get("/api/v1/status", r.status),
		rest.Get("/api/v1/switch", r.listSwitch),
		rest.Get("/api/v1/host", r.listHost),
		rest.Get("/api/v1/link", r.listLink),
		rest.Post("/api/v1/link", r.addLink),
		rest.Delete("/api/v1/link/:dpid/:port", r.removeLink),
		rest.Post("/api/v1/remove", r.remove),
	}
}

func (r *API) Serve(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	return r.Server.Serve(ctx, r.routes()...)
}

func (r *API) status(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("status request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{
		Status: api.StatusOkay,
		Data: struct {
			Switches int `json:"switches"`
			Links    int `json:"links"`
			Hosts    int `json:"hosts"`
		}{
			Switches: len(r.Topology.Switches()),
			Links:    len(r.Topology.Links()),
			Hosts:    len(r.Hosts.Hosts()),
		},
	})
}

type port struct {
	Number uint16 `json:"number"`
	MAC    string `json:"mac"`
	Name   string `json:"name"`
	Up     bool   `json:"up"`
}

type switchInfo struct {
	DPID          uint64 `json:"dpid"`
	NumBuffers    uint32 `json:"n_buffers"`
	NumTables     uint8  `json:"n_tables"`
	FloodSupport  bool   `json:"flood_support"`
	WildcardsMask uint32 `json:"wildcards"`
	Ports         []port `json:"ports"`
}

func (r *API) listSwitch(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("switch list request from %v", req.RemoteAddr)

	switches := r.Topology.Switches()
	result := make([]switchInfo, 0, len(switches))
	for _, sw := range switches {
		f := sw.Features()
		v := switchInfo{
			DPID:          f.DPID,
			NumBuffers:    f.NumBuffers,
			NumTables:     f.NumTables,
			FloodSupport:  sw.SupportsFlood(),
			WildcardsMask: sw.DefaultWildcards(),
		}
		for _, p := range sw.Ports() {
			v.Ports = append(v.Ports, port{
				Number: p.Number,
				MAC:    p.MAC.String(),
				Name:   p.Name,
				Up:     !p.IsPortDown() && !p.IsLinkDown(),
			})
		}
		result = append(result, v)
	}

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: result})
}

func (r *API) listHost(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("host list request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: r.Hosts.Hosts()})
}

func (r *API) listLink(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("link list request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: r.Topology.Links()})
}

func (r *API) addLink(w rest.ResponseWriter, req *rest.Request) {
	p := new(network.LinkParam)
	if err := req.DecodeJsonPayload(p); err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("add link request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	id, err := r.Topology.AddLink(*p)
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Infof("added a new link: id=%v", id)

	w.WriteJson(&api.Response{
		Status: api.StatusOkay,
		Data: struct {
			ID string `json:"id"`
		}{id},
	})
}

// removeLink removes the link that has the port identified by the path parameters on its either end.
func (r *API) removeLink(w rest.ResponseWriter, req *rest.Request) {
	dpid, err := strconv.ParseUint(req.PathParam("dpid"), 10, 64)
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: "invalid DPID"})
		return
	}
	num, err := strconv.ParseUint(req.PathParam("port"), 10, 16)
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: "invalid port number"})
		return
	}
	logger.Debugf("remove link request from %v: dpid=%v, port=%v", req.RemoteAddr, dpid, num)

	target := network.Port{DPID: dpid, Number: uint16(num)}
	for _, l := range r.Topology.Links() {
		if l.A != target && l.B != target {
			continue
		}
		if !r.Topology.RemoveLink(l.ID) {
			break
		}
		logger.Infof("removed a link: id=%v", l.ID)
		w.WriteJson(&api.Response{Status: api.StatusOkay})
		return
	}

	w.WriteJson(&api.Response{Status: api.StatusNotFound, Message: "unknown link"})
}

func (r *API) remove(w rest.ResponseWriter, req *rest.Request) {
	p := new(removeParam)
	if err := req.DecodeJsonPayload(p); err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("remove request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	err := r.Controller.RemoveFlows(p.MAC)
	// Some of the flows may have been removed even on failure.
	r.FlowCache.Purge()
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInternalServerError, Message: err.Error()})
		return
	}

	w.WriteJson(&api.Response{Status: api.StatusOkay})
}

type removeParam struct {
	MAC net.HardwareAddr
}

func (r *removeParam) UnmarshalJSON(data []byte) error {
	v := struct {
		MAC string `json:"mac"`
	}{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	// If MAC is empty, remove all flows.
	if len(v.MAC) == 0 {
		return nil
	}

	addr, err := net.ParseMAC(v.MAC)
	if err != nil {
		return err
	}
	r.MAC = addr

	return nil
}
