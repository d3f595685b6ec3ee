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
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// GetLogs implements eth_getLogs.
func (s *Service) GetLogs(ctx context.Context, args []any) (any, error) {
	filter := args[0].(*dispatch.LogsFilter)

	span, err := s.logsRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	if span == nil {
		return []RPCLog{}, nil
	}

	q := url.Values{}
	q["timestamp"] = mirror.FormatTimestampRangeQuery(*span)
	if err := attachTopicFilters(q, filter.Topics); err != nil {
		return nil, err
	}

	var logs []mirror.Log
	if len(filter.Address) > 0 {
		for _, addr := range filter.Address {
			addrLogs, err := s.mirror.GetContractLogsByAddress(ctx, strings.ToLower(addr.Hex()), q)
			if err != nil {
				return nil, err
			}
			logs = append(logs, addrLogs...)
		}
	} else {
		logs, err = s.mirror.GetContractResultsLogs(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.Before(logs[j].Timestamp)
	})

	wire := make([]RPCLog, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		wire = append(wire, formatLog(l, hash32(l.TransactionHash), l.TransactionIndex, l.Index))
	}
	return wire, nil
}

// logsRange validates the filter's block scope and maps it onto a
// consensus timestamp interval. A nil range with no error means the
// scope matches no blocks.
func (s *Service) logsRange(ctx context.Context, filter *dispatch.LogsFilter) (*mirror.TimestampRange, error) {
	if filter.BlockHash != nil {
		block, err := s.mirror.GetBlock(ctx, strings.ToLower(filter.BlockHash.Hex()))
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, nil
		}
		return &block.Timestamp, nil
	}

	fromGiven := filter.FromBlock != nil
	toGiven := filter.ToBlock != nil

	to := rpc.LatestBlockNumber
	if toGiven {
		to = *filter.ToBlock
	}
	// A concrete toBlock without a fromBlock is an unbounded backward
	// scan; reject it. Tag-to-tag defaults collapse to a single block.
	if !fromGiven && toGiven && !isMovingTag(to) {
		return nil, rpcerr.MissingFromBlockParam()
	}
	from := rpc.LatestBlockNumber
	if fromGiven {
		from = *filter.FromBlock
	}

	fromBlock, err := s.resolveBlock(ctx, from)
	if err != nil {
		return nil, err
	}
	toBlock, err := s.resolveBlock(ctx, to)
	if err != nil {
		return nil, err
	}
	if fromBlock == nil || toBlock == nil {
		return nil, nil
	}
	if fromBlock.Number > toBlock.Number {
		return nil, rpcerr.InvalidBlockRange()
	}

	span := mirror.TimestampRange{From: fromBlock.Timestamp.From, To: toBlock.Timestamp.To}
	if window := toBlock.Timestamp.To.Time().Sub(fromBlock.Timestamp.From.Time()); window > s.cfg.MaxTimestampRange {
		return nil, rpcerr.TimestampRangeTooLarge(
			numHex(fromBlock.Number), numHex(toBlock.Number),
			string(span.From), string(span.To))
	}
	// The block-range guard is waived only for single-address queries;
	// the mirror bounds those by address instead.
	if len(filter.Address) != 1 && toBlock.Number-fromBlock.Number > s.cfg.MaxBlockRange {
		return nil, rpcerr.RangeTooLarge(s.cfg.MaxBlockRange)
	}
	return &span, nil
}

// attachTopicFilters adds topic0..topic3 query params. Each position
// accepts null, a single topic or an array of alternatives.
func attachTopicFilters(q url.Values, topics []json.RawMessage) error {
	if len(topics) > 4 {
		return rpcerr.InvalidParameterMsg("too many topic filters")
	}
	for i, raw := range topics {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		key := fmt.Sprintf("topic%d", i)
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			q.Add(key, hash32(single))
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return rpcerr.InvalidParameter(0, "topics entries must be 32-byte hex strings or arrays thereof")
		}
		for _, t := range many {
			q.Add(key, hash32(t))
		}
	}
	return nil
}
