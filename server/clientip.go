// Copyright 2025 The evm-gateway Authors
// This file is part of the evm-gateway library.
//
// The evm-gateway library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evm-gateway library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evm-gateway library. If not, see <http://www.gnu.org/licenses/>.

package server

import "strings"

// Header values longer than this are ignored outright, and no address
// candidate longer than a full IPv6 string is ever returned.
const (
	maxForwardedHeader = 1000
	maxAddressLen      = 45
)

// firstForwardedFor returns the first entry of an X-Forwarded-For
// value, the address of the original client.
func firstForwardedFor(v string) string {
	if len(v) > maxForwardedHeader {
		return ""
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return boundAddress(strings.TrimSpace(v))
}

// parseForwarded extracts the first for= element of an RFC 7239
// Forwarded value. Handles unquoted tokens, quoted strings and
// bracketed IPv6 forms, without regular expressions.
func parseForwarded(v string) string {
	if len(v) > maxForwardedHeader {
		return ""
	}
	rest := v
	for rest != "" {
		// Elements are separated by commas, parameters within an
		// element by semicolons.
		var elem string
		if i := strings.IndexAny(rest, ";,"); i >= 0 {
			elem, rest = rest[:i], rest[i+1:]
		} else {
			elem, rest = rest, ""
		}
		elem = strings.TrimSpace(elem)
		if len(elem) < 4 || !strings.EqualFold(elem[:4], "for=") {
			continue
		}
		return boundAddress(forwardedValue(elem[4:]))
	}
	return ""
}

// forwardedValue unwraps one for= value: strips surrounding quotes,
// and for bracketed IPv6 node names drops the brackets and any port.
func forwardedValue(v string) string {
	if strings.HasPrefix(v, `"`) {
		v = strings.TrimPrefix(v, `"`)
		if i := strings.IndexByte(v, '"'); i >= 0 {
			v = v[:i]
		}
	}
	if strings.HasPrefix(v, "[") {
		v = strings.TrimPrefix(v, "[")
		if i := strings.IndexByte(v, ']'); i >= 0 {
			return v[:i]
		}
		return ""
	}
	// An unquoted IPv4 node may still carry a port.
	if i := strings.IndexByte(v, ':'); i >= 0 && strings.Count(v, ":") == 1 {
		v = v[:i]
	}
	return v
}

func boundAddress(v string) string {
	if v == "" || len(v) > maxAddressLen {
		return ""
	}
	return v
}
