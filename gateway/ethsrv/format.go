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

package ethsrv

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

// Fixed Ethereum constants emitted for fields the upstream does not
// model.
const (
	zeroHex       = "0x0"
	zeroHex8Byte  = "0x0000000000000000"
	zeroHex32Byte = "0x0000000000000000000000000000000000000000000000000000000000000000"
	zeroAddress   = "0x0000000000000000000000000000000000000000"

	// Root of the empty trie, used for stateRoot and empty
	// transactionsRoot/receiptsRoot.
	defaultRootHash = "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"
	// keccak256 of the RLP empty list, the canonical sha3Uncles.
	emptyArrayHash = "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347"

	// The native-token system contract and the sentinel bytecode
	// returned for it (EIP-1459 style invalid-opcode marker).
	htsAddress            = "0x0000000000000000000000000000000000000167"
	invalidOpcodeSentinel = "0xfe"
)

// emptyBloom is the 256-byte zero bloom.
var emptyBloom = "0x" + strings.Repeat("0", 512)

// Token redirect bytecode: a minimal proxy that delegates to the HTS
// system contract for the token at the spliced-in address.
const (
	redirectBytecodePrefix = "6080604052348015600f57600080fd5b506000610167905077618dc65e"
	redirectBytecodeSuffix = "600052366000602037600080366018016008845af43d806000803e8015609b573d6000f35b3d6000fd5b600080fd"
)

// redirectBytecodeFor renders the redirect proxy for a token address.
func redirectBytecodeFor(address string) string {
	return "0x" + redirectBytecodePrefix + strings.TrimPrefix(strings.ToLower(address), "0x") + redirectBytecodeSuffix
}

// numHex renders a non-negative integer as minimal hex.
func numHex(v int64) string {
	if v < 0 {
		v = 0
	}
	return hexutil.EncodeUint64(uint64(v))
}

// bigHex renders a big integer as minimal hex; nil and zero render as
// 0x0.
func bigHex(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return zeroHex
	}
	return hexutil.EncodeBig(v)
}

// quantityHex normalizes an upstream hex quantity: leading zeros are
// trimmed, empty and absent values collapse to 0x0.
func quantityHex(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return zeroHex
	}
	return "0x" + s
}

// dataHex normalizes upstream hex payload data (not a quantity):
// lower-case, 0x-prefixed, zero-length collapses to "0x".
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

// hash32 normalizes an upstream hash to exactly 32 bytes of hex. The
// mirror reports 48-byte block hashes; Ethereum shapes keep the first
// 32 bytes.
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

// bloomHex normalizes an upstream bloom, substituting the empty bloom
// for the upstream's empty sentinel.
func bloomHex(s string) string {
	if s == "" || s == "0x" {
		return emptyBloom
	}
	return strings.ToLower(s)
}

// timestampHex renders a consensus timestamp as the hex seconds value
// Ethereum blocks carry.
func timestampHex(ts mirror.Timestamp) string {
	return numHex(ts.Seconds())
}

// weibarHexFromTinybar converts a tinybar amount to a weibar hex
// quantity.
func weibarHexFromTinybar(tinybar int64) string {
	return bigHex(mirror.TinybarToWeibar(big.NewInt(tinybar)))
}

// parseBigHex parses a hex quantity; nil on absent or malformed.
func parseBigHex(s string) *big.Int {
	if s == "" || s == "0x" {
		return nil
	}
	v, err := hexutil.DecodeBig(quantityHex(s))
	if err != nil {
		return nil
	}
	return v
}
