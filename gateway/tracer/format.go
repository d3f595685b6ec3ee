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

package tracer

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

const zeroHex = "0x0"

// numHex renders a non-negative integer as minimal hex.
func numHex(v int64) string {
	if v < 0 {
		v = 0
	}
	return hexutil.EncodeUint64(uint64(v))
}

// dataHex normalizes hex payload data: lower-case, 0x-prefixed, empty
// collapses to "0x".
func dataHex(s string) string {
	if s == "" {
		return "0x"
	}
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// hash32 truncates the mirror's 48-byte hashes to the 32 bytes
// Ethereum shapes carry.
func hash32(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) > 64 {
		s = s[:64]
	}
	for len(s) < 64 {
		s = "0" + s
	}
	return "0x" + s
}

// weibarHex renders a tinybar amount as a weibar hex quantity.
func weibarHex(tinybar int64) string {
	v := mirror.TinybarToWeibar(big.NewInt(tinybar))
	if v.Sign() == 0 {
		return zeroHex
	}
	return hexutil.EncodeBig(v)
}
