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
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

const testPrivateKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// Current network gas price used across the precheck tests, in weibar.
var testNetworkPrice = new(big.Int).Mul(big.NewInt(71), big.NewInt(mirror.TinybarToWeibarCoef))

func testKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return key, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func signedTx(t *testing.T, key *ecdsa.PrivateKey, txdata types.TxData) *parsedTx {
	t.Helper()
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(0x12a)), txdata)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	p, err := parseRawTransaction(raw)
	require.NoError(t, err)
	return p
}

// dynamicTx is a well-formed transfer that passes every precheck when
// the sender account is funded.
func dynamicTx(nonce uint64) *types.DynamicFeeTx {
	to := common.HexToAddress(testAddress2)
	return &types.DynamicFeeTx{
		ChainID:   big.NewInt(0x12a),
		Nonce:     nonce,
		GasTipCap: big.NewInt(0),
		GasFeeCap: new(big.Int).Set(testNetworkPrice),
		Gas:       100_000,
		To:        &to,
		Value:     big.NewInt(0),
	}
}

func senderFixture(sender string, nonce any, balance int64) fixture {
	account := accountFixture(nonce, balance)
	account["evm_address"] = sender
	return fixture{"/api/v1/accounts/" + sender: account}
}

func precheckCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	rpcErr, ok := rpcerr.FromError(err)
	require.True(t, ok)
	return rpcErr.Code
}

func TestPrecheckAccepts(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))
	p := signedTx(t, key, dynamicTx(4))

	account, err := s.precheck(context.Background(), p, testNetworkPrice)
	require.NoError(t, err)
	require.NotNil(t, account)
}

func TestPrecheckCallDataSize(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))
	s.cfg.CallDataSizeLimit = 4

	tx := dynamicTx(4)
	tx.Data = []byte{1, 2, 3, 4, 5}
	tx.Gas = 30_000
	p := signedTx(t, key, tx)

	assert.Equal(t, rpcerr.CodeCallDataExceeded, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckTransactionSize(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))
	s.cfg.SendRawTxSizeLimit = 16
	p := signedTx(t, key, dynamicTx(4))

	assert.Equal(t, rpcerr.CodeTxSizeExceeded, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckGasLimitBounds(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))

	low := dynamicTx(4)
	low.Gas = 100
	assert.Equal(t, rpcerr.CodeGasLimitTooLow,
		precheckCode(t, mustErr(s.precheck(context.Background(), signedTx(t, key, low), testNetworkPrice))))

	high := dynamicTx(4)
	high.Gas = 20_000_000
	assert.Equal(t, rpcerr.CodeGasLimitTooHigh,
		precheckCode(t, mustErr(s.precheck(context.Background(), signedTx(t, key, high), testNetworkPrice))))
}

func TestPrecheckUnknownSender(t *testing.T) {
	key, _ := testKey(t)
	s := newTestService(t, fixture{})
	p := signedTx(t, key, dynamicTx(4))

	assert.Equal(t, rpcerr.CodeResourceNotFound, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckNonceTooLow(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 10, 10_000_000_000))
	p := signedTx(t, key, dynamicTx(4))

	assert.Equal(t, rpcerr.CodeNonceTooLow, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckWrongChainID(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))

	tx := dynamicTx(4)
	tx.ChainID = big.NewInt(1)
	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	p, err := parseRawTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, rpcerr.CodeUnsupportedChain, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckValueGranularity(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))

	tx := dynamicTx(4)
	tx.Value = big.NewInt(5) // below one tinybar
	p := signedTx(t, key, tx)

	assert.Equal(t, rpcerr.CodeValueTooLow, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckGasPriceFloor(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 10_000_000_000))

	tx := dynamicTx(4)
	tx.GasFeeCap = big.NewInt(mirror.TinybarToWeibarCoef) // one tinybar
	p := signedTx(t, key, tx)

	assert.Equal(t, rpcerr.CodeGasPriceTooLow, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckInsufficientBalance(t *testing.T) {
	key, sender := testKey(t)
	s := newTestService(t, senderFixture(sender, 4, 1))
	p := signedTx(t, key, dynamicTx(4))

	assert.Equal(t, rpcerr.CodeInsufficientFunds, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestPrecheckReceiverSigRequired(t *testing.T) {
	key, sender := testKey(t)
	routes := senderFixture(sender, 4, 10_000_000_000)
	receiver := accountFixture(0, 0)
	receiver["evm_address"] = testAddress2
	receiver["receiver_sig_required"] = true
	routes["/api/v1/accounts/"+testAddress2] = receiver
	s := newTestService(t, routes)
	p := signedTx(t, key, dynamicTx(4))

	assert.Equal(t, rpcerr.CodeInvalidArguments, precheckCode(t, mustErr(s.precheck(context.Background(), p, testNetworkPrice))))
}

func TestParseRawTransactionGarbage(t *testing.T) {
	_, err := parseRawTransaction([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Error(t, err)
	rpcErr, ok := rpcerr.FromError(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeInvalidArguments, rpcErr.Code)
}

// mustErr drops the value of a two-return call so the error can feed
// an assertion helper.
func mustErr(_ *mirror.Account, err error) error { return err }
