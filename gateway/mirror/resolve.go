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

package mirror

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsLongZeroAddress reports whether addr is the EVM alias of a native
// entity id: twelve zero bytes followed by the entity number.
func IsLongZeroAddress(addr common.Address) bool {
	for _, b := range addr[:12] {
		if b != 0 {
			return false
		}
	}
	return true
}

// AddressToEntityID renders a long-zero address as its native entity
// id ("0.0.<num>"). The second return is false for aliased addresses.
func AddressToEntityID(addr common.Address) (string, bool) {
	if !IsLongZeroAddress(addr) {
		return "", false
	}
	num := binary.BigEndian.Uint64(addr[12:])
	return fmt.Sprintf("0.0.%d", num), true
}

// ResolveEntityType determines what kind of entity lives at addr by
// probing the candidate kinds in order. A nil result means no entity
// of any candidate kind exists. ts, when set, scopes lookups
// historically.
func (c *Client) ResolveEntityType(ctx context.Context, addr common.Address, ts Timestamp, kinds ...EntityType) (*ResolvedEntity, error) {
	if len(kinds) == 0 {
		kinds = []EntityType{EntityContract, EntityToken, EntityAccount}
	}
	hexAddr := strings.ToLower(addr.Hex())
	for _, kind := range kinds {
		switch kind {
		case EntityContract:
			contract, err := c.GetContract(ctx, hexAddr)
			if err != nil {
				return nil, err
			}
			if contract != nil && !contract.Deleted {
				return &ResolvedEntity{Type: EntityContract, Contract: contract}, nil
			}
		case EntityToken:
			// Tokens only exist behind long-zero aliases.
			id, ok := AddressToEntityID(addr)
			if !ok {
				continue
			}
			token, err := c.GetTokenByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if token != nil {
				return &ResolvedEntity{Type: EntityToken, Token: token}, nil
			}
		case EntityAccount:
			account, err := c.GetAccount(ctx, hexAddr, ts)
			if err != nil {
				return nil, err
			}
			if account != nil {
				return &ResolvedEntity{Type: EntityAccount, Account: account}, nil
			}
		}
	}
	return nil, nil
}
