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

// Execution API response shapes. Quantities are minimal hex strings,
// hashes fixed-width hex, per the Execution API schema.

// RPCBlock is the eth_getBlockBy* response body.
type RPCBlock struct {
	Number           string   `json:"number"`
	Hash             string   `json:"hash"`
	ParentHash       string   `json:"parentHash"`
	Nonce            string   `json:"nonce"`
	Sha3Uncles       string   `json:"sha3Uncles"`
	LogsBloom        string   `json:"logsBloom"`
	TransactionsRoot string   `json:"transactionsRoot"`
	StateRoot        string   `json:"stateRoot"`
	ReceiptsRoot     string   `json:"receiptsRoot"`
	Miner            string   `json:"miner"`
	Difficulty       string   `json:"difficulty"`
	TotalDifficulty  string   `json:"totalDifficulty"`
	ExtraData        string   `json:"extraData"`
	Size             string   `json:"size"`
	GasLimit         string   `json:"gasLimit"`
	GasUsed          string   `json:"gasUsed"`
	BaseFeePerGas    string   `json:"baseFeePerGas"`
	MixHash          string   `json:"mixHash"`
	Timestamp        string   `json:"timestamp"`
	Uncles           []string `json:"uncles"`
	// Transactions holds hashes (strings) or full *RPCTransaction
	// values, never mixed.
	Transactions     []any    `json:"transactions"`
	WithdrawalsRoot  *string  `json:"withdrawalsRoot,omitempty"`
}

// RPCTransaction is the eth_getTransactionBy* response body, a tagged
// union over the three supported EIP-2718 types.
type RPCTransaction struct {
	BlockHash        string  `json:"blockHash"`
	BlockNumber      string  `json:"blockNumber"`
	ChainID          *string `json:"chainId,omitempty"`
	From             string  `json:"from"`
	Gas              string  `json:"gas"`
	GasPrice         string  `json:"gasPrice"`
	Hash             string  `json:"hash"`
	Input            string  `json:"input"`
	Nonce            string  `json:"nonce"`
	To               *string `json:"to"`
	TransactionIndex string  `json:"transactionIndex"`
	Type             string  `json:"type"`
	Value            string  `json:"value"`
	V                string  `json:"v"`
	R                string  `json:"r"`
	S                string  `json:"s"`

	// Type 1 and 2 only.
	AccessList *[]any `json:"accessList,omitempty"`
	// Type 2 only.
	MaxFeePerGas         *string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas,omitempty"`
}

// RPCLog is one entry of eth_getLogs and receipt logs.
type RPCLog struct {
	Address          string   `json:"address"`
	BlockHash        string   `json:"blockHash"`
	BlockNumber      string   `json:"blockNumber"`
	Data             string   `json:"data"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
	Topics           []string `json:"topics"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
}

// RPCReceipt is the eth_getTransactionReceipt response body. Synthetic
// receipts (log groups without a contract result) use the same shape
// with defaulted execution fields.
type RPCReceipt struct {
	BlockHash         string   `json:"blockHash"`
	BlockNumber       string   `json:"blockNumber"`
	From              string   `json:"from"`
	To                *string  `json:"to"`
	CumulativeGasUsed string   `json:"cumulativeGasUsed"`
	GasUsed           string   `json:"gasUsed"`
	ContractAddress   *string  `json:"contractAddress"`
	Logs              []RPCLog `json:"logs"`
	LogsBloom         string   `json:"logsBloom"`
	TransactionHash   string   `json:"transactionHash"`
	TransactionIndex  string   `json:"transactionIndex"`
	EffectiveGasPrice string   `json:"effectiveGasPrice"`
	Root              string   `json:"root"`
	Status            string   `json:"status"`
	Type              *string  `json:"type"`
}

// RPCFeeHistory is the eth_feeHistory response body.
type RPCFeeHistory struct {
	BaseFeePerGas []string    `json:"baseFeePerGas"`
	GasUsedRatio  []float64   `json:"gasUsedRatio"`
	OldestBlock   string      `json:"oldestBlock"`
	Reward        *[][]string `json:"reward,omitempty"`
}
