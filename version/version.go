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

// Package version holds the gateway release identity reported by
// web3_clientVersion.
package version

import "fmt"

const (
	Major = 0
	Minor = 9
	Patch = 0
)

// String is the semantic version of the gateway.
func String() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// ClientVersion is the value returned by web3_clientVersion.
func ClientVersion() string {
	return "relay/" + String()
}
