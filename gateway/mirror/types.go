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
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Timestamp is the mirror's consensus timestamp: "<seconds>.<nanos>".
type Timestamp string

// Seconds returns the integral seconds of the timestamp.
func (t Timestamp) Seconds() int64 {
	s, _, _ := strings.Cut(string(t), ".")
	sec, _ := strconv.ParseInt(s, 10, 64)
	return sec
}

// Time converts the timestamp to wall-clock time.
func (t Timestamp) Time() time.Time {
	s, ns, _ := strings.Cut(string(t), ".")
	sec, _ := strconv.ParseInt(s, 10, 64)
	// Nanos are zero-padded to nine digits on the wire; tolerate short.
	for len(ns) < 9 {
		ns += "0"
	}
	nano, _ := strconv.ParseInt(ns, 10, 64)
	return time.Unix(sec, nano)
}

// Before reports strict ordering between consensus timestamps.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Time().Before(other.Time())
}

// TimestampRange is the [from, to] consensus interval of a block.
type TimestampRange struct {
	From Timestamp `json:"from"`
	To   Timestamp `json:"to"`
}

// Block is the mirror block record.
type Block struct {
	Count        int64          `json:"count"`
	Hash         string         `json:"hash"`
	Name         string         `json:"name"`
	Number       int64          `json:"number"`
	PreviousHash string         `json:"previous_hash"`
	Size         int64          `json:"size"`
	Timestamp    TimestampRange `json:"timestamp"`
	GasUsed      int64          `json:"gas_used"`
	LogsBloom    string         `json:"logs_bloom"`
}

// ContractResult is a contract execution record. List and detail
// responses share the shape; detail responses carry the signature and
// fee fields as well.
type ContractResult struct {
	Address            string    `json:"address"`
	Amount             int64     `json:"amount"`
	Bloom              string    `json:"bloom"`
	CallResult         string    `json:"call_result"`
	ContractID         string    `json:"contract_id"`
	CreatedContractIDs []string  `json:"created_contract_ids"`
	ErrorMessage       string    `json:"error_message"`
	From               string    `json:"from"`
	FunctionParameters string    `json:"function_parameters"`
	GasConsumed        *int64    `json:"gas_consumed"`
	GasLimit           int64     `json:"gas_limit"`
	GasUsed            int64     `json:"gas_used"`
	Hash               string    `json:"hash"`
	Result             string    `json:"result"`
	Status             string    `json:"status"`
	Timestamp          Timestamp `json:"timestamp"`
	To                 string    `json:"to"`

	BlockHash        string   `json:"block_hash"`
	BlockNumber      int64    `json:"block_number"`
	BlockGasUsed     int64    `json:"block_gas_used"`
	TransactionIndex int64    `json:"transaction_index"`
	ChainID          string   `json:"chain_id"`
	FailedInitcode   string   `json:"failed_initcode"`
	GasPrice         string   `json:"gas_price"`
	MaxFeePerGas     string   `json:"max_fee_per_gas"`
	MaxPriorityFee   string   `json:"max_priority_fee_per_gas"`
	Nonce            *int64   `json:"nonce"`
	R                string   `json:"r"`
	S                string   `json:"s"`
	V                *int64   `json:"v"`
	Type             *int64   `json:"type"`
	AccessList       string   `json:"access_list"`
	Logs             []Log    `json:"logs"`
	StateChanges     []any    `json:"state_changes"`
}

// Succeeded reports whether the execution result is SUCCESS.
func (r *ContractResult) Succeeded() bool { return r.Result == "SUCCESS" }

// Log is a contract log record from /contracts/results/logs.
type Log struct {
	Address          string    `json:"address"`
	Bloom            string    `json:"bloom"`
	ContractID       string    `json:"contract_id"`
	Data             string    `json:"data"`
	Index            int64     `json:"index"`
	Topics           []string  `json:"topics"`
	BlockHash        string    `json:"block_hash"`
	BlockNumber      int64     `json:"block_number"`
	RootContractID   string    `json:"root_contract_id"`
	Timestamp        Timestamp `json:"timestamp"`
	TransactionHash  string    `json:"transaction_hash"`
	TransactionIndex *int64    `json:"transaction_index"`
}

// AccountBalance is the balance stanza of an account record.
type AccountBalance struct {
	Balance   int64     `json:"balance"`
	Timestamp Timestamp `json:"timestamp"`
}

// Account is the mirror account record.
type Account struct {
	Account               string         `json:"account"`
	Alias                 string         `json:"alias"`
	Balance               AccountBalance `json:"balance"`
	EthereumNonce         *int64         `json:"ethereum_nonce"`
	EvmAddress            string         `json:"evm_address"`
	Deleted               bool           `json:"deleted"`
	ReceiverSigRequired   *bool          `json:"receiver_sig_required"`
	CreatedTimestamp      Timestamp      `json:"created_timestamp"`
	PendingReward         int64          `json:"pending_reward"`
	Transactions          []Transfer     `json:"transactions"`
}

// Contract is the mirror contract record.
type Contract struct {
	ContractID       string    `json:"contract_id"`
	EvmAddress       string    `json:"evm_address"`
	FileID           string    `json:"file_id"`
	RuntimeBytecode  string    `json:"runtime_bytecode"`
	Bytecode         string    `json:"bytecode"`
	CreatedTimestamp Timestamp `json:"created_timestamp"`
	Deleted          bool      `json:"deleted"`
	Nonce            int64     `json:"nonce"`
}

// Token is the mirror token record; only identity matters to the
// gateway, the body is the redirect-bytecode trigger.
type Token struct {
	TokenID string `json:"token_id"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Type    string `json:"type"`
}

// StateSlot is one storage slot from /contracts/{id}/state.
type StateSlot struct {
	Address    string    `json:"address"`
	ContractID string    `json:"contract_id"`
	Timestamp  Timestamp `json:"timestamp"`
	Slot       string    `json:"slot"`
	Value      string    `json:"value"`
}

// ContractAction is one EVM action from /contracts/results/{hash}/actions.
type ContractAction struct {
	CallDepth         int64     `json:"call_depth"`
	CallOperationType string    `json:"call_operation_type"`
	CallType          string    `json:"call_type"`
	Caller            string    `json:"caller"`
	CallerType        string    `json:"caller_type"`
	From              string    `json:"from"`
	Gas               int64     `json:"gas"`
	GasUsed           int64     `json:"gas_used"`
	Index             int64     `json:"index"`
	Input             string    `json:"input"`
	Recipient         string    `json:"recipient"`
	RecipientType     string    `json:"recipient_type"`
	ResultData        string    `json:"result_data"`
	ResultDataType    string    `json:"result_data_type"`
	Timestamp         Timestamp `json:"timestamp"`
	To                string    `json:"to"`
	Value             int64     `json:"value"`
}

// Opcode is one step of an opcode trace.
type Opcode struct {
	PC      int64             `json:"pc"`
	Op      string            `json:"op"`
	Gas     int64             `json:"gas"`
	GasCost int64             `json:"gas_cost"`
	Depth   int64             `json:"depth"`
	Stack   []string          `json:"stack"`
	Memory  []string          `json:"memory"`
	Storage map[string]string `json:"storage"`
	Reason  *string           `json:"reason"`
}

// OpcodesResponse is the body of /contracts/results/{hash}/opcodes.
type OpcodesResponse struct {
	Address     string   `json:"address"`
	ContractID  string   `json:"contract_id"`
	Failed      bool     `json:"failed"`
	Gas         int64    `json:"gas"`
	Opcodes     []Opcode `json:"opcodes"`
	ReturnValue string   `json:"return_value"`
}

// Fee is one entry of the network fee schedule.
type Fee struct {
	Gas             int64  `json:"gas"`
	TransactionType string `json:"transaction_type"`
}

// NetworkFees is the body of /network/fees.
type NetworkFees struct {
	Fees      []Fee     `json:"fees"`
	Timestamp Timestamp `json:"timestamp"`
}

// EthereumTransactionFee returns the gas fee entry for ethereum
// transactions, or nil when the schedule lacks one.
func (f *NetworkFees) EthereumTransactionFee() *Fee {
	for i := range f.Fees {
		if f.Fees[i].TransactionType == "EthereumTransaction" {
			return &f.Fees[i]
		}
	}
	return nil
}

// Rate is one side of the exchange-rate record.
type Rate struct {
	CentEquivalent int64 `json:"cent_equivalent"`
	HbarEquivalent int64 `json:"hbar_equivalent"`
	ExpirationTime int64 `json:"expiration_time"`
}

// ExchangeRate is the body of /network/exchangerate.
type ExchangeRate struct {
	CurrentRate Rate      `json:"current_rate"`
	NextRate    Rate      `json:"next_rate"`
	Timestamp   Timestamp `json:"timestamp"`
}

// Transfer is one leg of a crypto transfer.
type Transfer struct {
	Account    string `json:"account"`
	Amount     int64  `json:"amount"`
	IsApproval bool   `json:"is_approval"`
}

// Transaction is a consensus transaction record (used for historical
// balance reconstruction).
type Transaction struct {
	ConsensusTimestamp Timestamp  `json:"consensus_timestamp"`
	Name               string     `json:"name"`
	Result             string     `json:"result"`
	ChargedTxFee       int64      `json:"charged_tx_fee"`
	Transfers          []Transfer `json:"transfers"`
	TransactionID      string     `json:"transaction_id"`
}

// ContractCallRequest is the body of POST /contracts/call.
type ContractCallRequest struct {
	Block    string `json:"block,omitempty"`
	Data     string `json:"data,omitempty"`
	Estimate bool   `json:"estimate"`
	From     string `json:"from,omitempty"`
	Gas      int64  `json:"gas,omitempty"`
	GasPrice int64  `json:"gasPrice,omitempty"`
	To       string `json:"to"`
	Value    int64  `json:"value,omitempty"`
}

// ContractCallResponse is the success body of POST /contracts/call.
type ContractCallResponse struct {
	Result string `json:"result"`
}

// EntityType tags the outcome of address resolution.
type EntityType string

const (
	EntityContract EntityType = "contract"
	EntityToken    EntityType = "token"
	EntityAccount  EntityType = "account"
)

// ResolvedEntity is the tagged result of ResolveEntityType.
type ResolvedEntity struct {
	Type     EntityType
	Contract *Contract
	Token    *Token
	Account  *Account
}

// EvmAddress returns the canonical EVM address of the entity, or ""
// when the upstream record carries none.
func (e *ResolvedEntity) EvmAddress() string {
	switch e.Type {
	case EntityContract:
		if e.Contract != nil {
			return e.Contract.EvmAddress
		}
	case EntityAccount:
		if e.Account != nil {
			return e.Account.EvmAddress
		}
	}
	return ""
}

// TinybarToWeibar converts a tinybar amount into weibars.
func TinybarToWeibar(tinybar *big.Int) *big.Int {
	return new(big.Int).Mul(tinybar, big.NewInt(TinybarToWeibarCoef))
}

// WeibarToTinybar converts weibars into tinybars, truncating.
func WeibarToTinybar(weibar *big.Int) *big.Int {
	return new(big.Int).Quo(weibar, big.NewInt(TinybarToWeibarCoef))
}

// TinybarToWeibarCoef is the fixed conversion coefficient between the
// native sub-unit and its 18-decimal Ethereum equivalent.
const TinybarToWeibarCoef = 10_000_000_000

// FormatTimestampRangeQuery renders "gte:<from>&timestamp=lte:<to>"
// query values for a block's consensus interval.
func FormatTimestampRangeQuery(r TimestampRange) []string {
	return []string{fmt.Sprintf("gte:%s", r.From), fmt.Sprintf("lte:%s", r.To)}
}
