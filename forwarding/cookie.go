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

const (
	appIDBits  = 12
	appIDShift = 52
	appIDMask  = (1 << appIDBits) - 1

	// ForwardingAppID tags the flows installed by this package.
	ForwardingAppID uint16 = 2
)

// MakeCookie encodes appID into the top 12 bits of a flow cookie and user into the lower 32 bits.
func MakeCookie(appID uint16, user uint32) uint64 {
	return uint64(appID&appIDMask)<<appIDShift | uint64(user)
}

func CookieAppID(cookie uint64) uint16 {
	return uint16((cookie >> appIDShift) & appIDMask)
}

func CookieUser(cookie uint64) uint32 {
	return uint32(cookie)
}
