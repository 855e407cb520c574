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

// Package openflow implements the subset of OpenFlow 1.0 messages that the
// forwarding controller exchanges with switches.
package openflow

import (
	"errors"
)

const (
	OF10_VERSION = 0x01
)

var (
	ErrInvalidPacketLength = errors.New("invalid packet length")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
	ErrUnsupportedMessage  = errors.New("unsupported message type")
	ErrInvalidMACAddress   = errors.New("invalid MAC address")
)

const (
	OFPT_HELLO = iota
	OFPT_ERROR
	OFPT_ECHO_REQUEST
	OFPT_ECHO_REPLY
	OFPT_VENDOR
	OFPT_FEATURES_REQUEST
	OFPT_FEATURES_REPLY
	OFPT_GET_CONFIG_REQUEST
	OFPT_GET_CONFIG_REPLY
	OFPT_SET_CONFIG
	OFPT_PACKET_IN
	OFPT_FLOW_REMOVED
	OFPT_PORT_STATUS
	OFPT_PACKET_OUT
	OFPT_FLOW_MOD
	OFPT_PORT_MOD
	OFPT_STATS_REQUEST
	OFPT_STATS_REPLY
	OFPT_BARRIER_REQUEST
	OFPT_BARRIER_REPLY
)

const (
	OFPAT_OUTPUT = 0 /* Output to switch port. */
)

// Reserved port numbers.
const (
	OFPP_MAX        = 0xff00
	OFPP_IN_PORT    = 0xfff8
	OFPP_TABLE      = 0xfff9
	OFPP_NORMAL     = 0xfffa
	OFPP_FLOOD      = 0xfffb
	OFPP_ALL        = 0xfffc
	OFPP_CONTROLLER = 0xfffd
	OFPP_LOCAL      = 0xfffe
	OFPP_NONE       = 0xffff
)

const (
	OFPFW_IN_PORT  = 1 << 0 /* Switch input port. */
	OFPFW_DL_VLAN  = 1 << 1 /* VLAN id. */
	OFPFW_DL_SRC   = 1 << 2 /* Ethernet source address. */
	OFPFW_DL_DST   = 1 << 3 /* Ethernet destination address. */
	OFPFW_DL_TYPE  = 1 << 4 /* Ethernet frame type. */
	OFPFW_NW_PROTO = 1 << 5 /* IP protocol. */
	OFPFW_TP_SRC   = 1 << 6 /* TCP/UDP source port. */
	OFPFW_TP_DST   = 1 << 7 /* TCP/UDP destination port. */

	// IP source address wildcard bit count. 0 is exact match,
	// 1 ignores the LSB, 2 ignores the 2 least-significant bits, ...,
	// 32 and higher wildcard the entire field.
	OFPFW_NW_SRC_SHIFT = 8
	OFPFW_NW_SRC_BITS  = 6
	OFPFW_NW_SRC_MASK  = ((1 << OFPFW_NW_SRC_BITS) - 1) << OFPFW_NW_SRC_SHIFT
	OFPFW_NW_SRC_ALL   = 32 << OFPFW_NW_SRC_SHIFT

	OFPFW_NW_DST_SHIFT = 14
	OFPFW_NW_DST_BITS  = 6
	OFPFW_NW_DST_MASK  = ((1 << OFPFW_NW_DST_BITS) - 1) << OFPFW_NW_DST_SHIFT
	OFPFW_NW_DST_ALL   = 32 << OFPFW_NW_DST_SHIFT

	OFPFW_DL_VLAN_PCP = 1 << 20 /* VLAN priority. */
	OFPFW_NW_TOS      = 1 << 21 /* IP ToS (DSCP field, 6 bits). */

	// Wildcard all fields.
	OFPFW_ALL = (1 << 22) - 1
)

const (
	OFPFF_SEND_FLOW_REM = 1 << 0 /* Send flow removed message when flow expires or is deleted. */
	OFPFF_CHECK_OVERLAP = 1 << 1 /* Check for overlapping entries first. */
	OFPFF_EMERG         = 1 << 2 /* Remark this is for emergency. */
)

// NoBuffer is the buffer ID meaning that the packet is not buffered on the switch.
const NoBuffer = 0xffffffff

// VLANNone is the VLAN ID of an untagged frame.
const VLANNone = 0xffff

type FlowModCmd uint16

const (
	FlowAdd          FlowModCmd = 0 /* New flow. */
	FlowModify       FlowModCmd = 1 /* Modify all matching flows. */
	FlowModifyStrict FlowModCmd = 2 /* Modify entry strictly matching wildcards and priority. */
	FlowDelete       FlowModCmd = 3 /* Delete all matching flows. */
	FlowDeleteStrict FlowModCmd = 4 /* Delete entry strictly matching wildcards and priority. */
)

func (r FlowModCmd) String() string {
	switch r {
	case FlowAdd:
		return "ADD"
	case FlowModify:
		return "MODIFY"
	case FlowModifyStrict:
		return "MODIFY_STRICT"
	case FlowDelete:
		return "DELETE"
	case FlowDeleteStrict:
		return "DELETE_STRICT"
	default:
		return "UNKNOWN"
	}
}
