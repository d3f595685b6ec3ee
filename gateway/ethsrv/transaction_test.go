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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

func contractResult(txType *int64) *mirror.ContractResult {
	nonce := int64(4)
	v := int64(1)
	return &mirror.ContractResult{
		Amount:             0,
		From:               testAddress,
		To:                 testAddress2,
		FunctionParameters: "0xa9059cbb",
		GasLimit:           400000,
		GasPrice:           "0x2f",
		Hash:               testTxHash,
		BlockHash:          testBlockHash + "deadbeefdeadbeefdeadbeefdeadbeef",
		BlockNumber:        7,
		TransactionIndex:   1,
		ChainID:            "0x12a",
		MaxFeePerGas:       "0x0059",
		MaxPriorityFee:     "0x33",
		Nonce:              &nonce,
		R:                  "0x00b5c2ac6d",
		S:                  "0x1092806a",
		V:                  &v,
		Type:               txType,
	}
}

func int64p(v int64) *int64 { return &v }

func TestBuildTransactionLegacy(t *testing.T) {
	tx := buildTransaction(contractResult(int64p(0)), "", "")
	require.NotNil(t, tx)
	assert.Equal(t, "0x0", tx.Type)
	assert.Nil(t, tx.AccessList)
	assert.Nil(t, tx.MaxFeePerGas)
	require.NotNil(t, tx.ChainID)
	assert.Equal(t, "0x12a", *tx.ChainID)
	assert.Equal(t, testBlockHash, tx.BlockHash)
	assert.Equal(t, "0x7", tx.BlockNumber)
	assert.Equal(t, "0x4", tx.Nonce)
	// Leading zero bytes are stripped from signature components.
	assert.Equal(t, "0xb5c2ac6d", tx.R)
	assert.Equal(t, "0x1092806a", tx.S)
}

func TestBuildTransactionNilTypeIsLegacy(t *testing.T) {
	tx := buildTransaction(contractResult(nil), "", "")
	require.NotNil(t, tx)
	assert.Equal(t, "0x0", tx.Type)
}

func TestBuildTransactionUnprotectedLegacyOmitsChainID(t *testing.T) {
	result := contractResult(int64p(0))
	result.ChainID = "0x"
	tx := buildTransaction(result, "", "")
	require.NotNil(t, tx)
	assert.Nil(t, tx.ChainID)
}

func TestBuildTransactionAccessList(t *testing.T) {
	tx := buildTransaction(contractResult(int64p(1)), "", "")
	require.NotNil(t, tx)
	assert.Equal(t, "0x1", tx.Type)
	require.NotNil(t, tx.AccessList)
	assert.Empty(t, *tx.AccessList)
	assert.Nil(t, tx.MaxFeePerGas)
}

func TestBuildTransactionDynamicFee(t *testing.T) {
	tx := buildTransaction(contractResult(int64p(2)), "", "")
	require.NotNil(t, tx)
	assert.Equal(t, "0x2", tx.Type)
	require.NotNil(t, tx.MaxFeePerGas)
	// Preceding zeros stripped.
	assert.Equal(t, "0x59", *tx.MaxFeePerGas)
	assert.Equal(t, "0x33", *tx.MaxPriorityFeePerGas)
}

func TestBuildTransactionDynamicFeeNormalizesEmptyFees(t *testing.T) {
	result := contractResult(int64p(2))
	result.MaxFeePerGas = "0x"
	result.MaxPriorityFee = ""
	tx := buildTransaction(result, "", "")
	require.NotNil(t, tx)
	assert.Equal(t, "0x0", *tx.MaxFeePerGas)
	assert.Equal(t, "0x0", *tx.MaxPriorityFeePerGas)
}

func TestBuildTransactionUnknownTypeIsNil(t *testing.T) {
	assert.Nil(t, buildTransaction(contractResult(int64p(5)), "", ""))
}

func TestBuildTransactionResolvedAddressesWin(t *testing.T) {
	tx := buildTransaction(contractResult(int64p(2)), testAddress2, testAddress)
	require.NotNil(t, tx)
	assert.Equal(t, testAddress2, tx.From)
	require.NotNil(t, tx.To)
	assert.Equal(t, testAddress, *tx.To)
}

func TestSyntheticTransactionShape(t *testing.T) {
	s := newTestService(t, fixture{})
	idx := int64(3)
	l := &mirror.Log{
		Address:          testAddress,
		BlockHash:        testBlockHash + "deadbeefdeadbeefdeadbeefdeadbeef",
		BlockNumber:      7,
		TransactionHash:  testTxHash,
		TransactionIndex: &idx,
	}
	tx := s.syntheticTransaction(l)
	assert.Equal(t, "0x2", tx.Type)
	assert.Equal(t, testAddress, tx.From)
	require.NotNil(t, tx.To)
	assert.Equal(t, testAddress, *tx.To)
	assert.Equal(t, "0x0", tx.Value)
	assert.Equal(t, "0x0", tx.Gas)
	assert.Equal(t, "0x3", tx.TransactionIndex)
	require.NotNil(t, tx.ChainID)
	assert.Equal(t, "0x12a", *tx.ChainID)
}

func TestGetTransactionByHashSyntheticProbe(t *testing.T) {
	s := newTestService(t, fixture{
		"/api/v1/contracts/results/logs": map[string]any{
			"logs": []any{map[string]any{
				"address":          testAddress,
				"block_hash":       testBlockHash,
				"block_number":     7,
				"transaction_hash": testTxHash,
			}},
		},
	})
	out, err := s.GetTransactionByHash(context.Background(), []any{testTxHash})
	require.NoError(t, err)
	tx, ok := out.(*RPCTransaction)
	require.True(t, ok)
	assert.Equal(t, testTxHash, tx.Hash)
	assert.Equal(t, testAddress, tx.From)
}

func TestGetTransactionByHashNotFound(t *testing.T) {
	s := newTestService(t, fixture{
		"/api/v1/contracts/results/logs": map[string]any{"logs": []any{}},
	})
	out, err := s.GetTransactionByHash(context.Background(), []any{testTxHash})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestIndexDecimal(t *testing.T) {
	assert.Equal(t, "0", indexDecimal("0x0"))
	assert.Equal(t, "10", indexDecimal("0xa"))
	assert.Equal(t, "0", indexDecimal("garbage"))
}
