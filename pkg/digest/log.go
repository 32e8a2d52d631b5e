// Package digest encodes and finds mapping commitment logs carried in a
// primary chain header digest.
package digest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/username/mapsync/pkg/core"
)

// EngineID tags digest items that carry mapping commitments
var EngineID = [4]byte{'f', 'r', 'o', 'n'}

var (
	ErrLogNotFound  = core.ErrLogNotFound
	ErrMultipleLogs = core.ErrMultipleLogs
)

// LogKind selects the payload carried by a Log
type LogKind uint8

const (
	// PreBlock carries the full secondary block, sealed before execution
	PreBlock LogKind = iota
	// PostHashes carries the secondary block hash and its transaction hashes
	PostHashes
	// PostBlock carries the full secondary block after execution
	PostBlock
)

// Log is a decoded commitment log
type Log struct {
	Kind              LogKind
	BlockHash         common.Hash
	TransactionHashes []common.Hash
	Block             *types.Block
}

type wireLog struct {
	Kind    uint8
	Payload []byte
}

type wireHashes struct {
	BlockHash         common.Hash
	TransactionHashes []common.Hash
}

// NewPostHashes builds a hashes-only log
func NewPostHashes(blockHash common.Hash, txHashes []common.Hash) *Log {
	return &Log{Kind: PostHashes, BlockHash: blockHash, TransactionHashes: txHashes}
}

// NewBlockLog builds a log carrying a full secondary block
func NewBlockLog(kind LogKind, block *types.Block) *Log {
	return &Log{Kind: kind, Block: block}
}

// IntoHashes reduces any log variant to the hashes the mapping needs
func (l *Log) IntoHashes() *core.PostHashes {
	switch l.Kind {
	case PreBlock, PostBlock:
		txs := l.Block.Transactions()
		hashes := make([]core.Hash, len(txs))
		for i, tx := range txs {
			hashes[i] = core.Hash(tx.Hash().Hex())
		}
		return &core.PostHashes{
			BlockHash:         core.Hash(l.Block.Hash().Hex()),
			TransactionHashes: hashes,
		}
	default:
		hashes := make([]core.Hash, len(l.TransactionHashes))
		for i, h := range l.TransactionHashes {
			hashes[i] = core.Hash(h.Hex())
		}
		return &core.PostHashes{
			BlockHash:         core.Hash(l.BlockHash.Hex()),
			TransactionHashes: hashes,
		}
	}
}

// Encode serializes the log as RLP
func (l *Log) Encode() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch l.Kind {
	case PreBlock, PostBlock:
		if l.Block == nil {
			return nil, fmt.Errorf("log kind %d requires a block", l.Kind)
		}
		payload, err = rlp.EncodeToBytes(l.Block)
	case PostHashes:
		payload, err = rlp.EncodeToBytes(&wireHashes{
			BlockHash:         l.BlockHash,
			TransactionHashes: l.TransactionHashes,
		})
	default:
		return nil, fmt.Errorf("unknown log kind %d", l.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode log payload: %w", err)
	}
	return rlp.EncodeToBytes(&wireLog{Kind: uint8(l.Kind), Payload: payload})
}

// DecodeLog parses an RLP encoded log
func DecodeLog(data []byte) (*Log, error) {
	var w wireLog
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return nil, err
	}
	switch LogKind(w.Kind) {
	case PreBlock, PostBlock:
		block := new(types.Block)
		if err := rlp.DecodeBytes(w.Payload, block); err != nil {
			return nil, err
		}
		return &Log{Kind: LogKind(w.Kind), Block: block}, nil
	case PostHashes:
		var h wireHashes
		if err := rlp.DecodeBytes(w.Payload, &h); err != nil {
			return nil, err
		}
		return NewPostHashes(h.BlockHash, h.TransactionHashes), nil
	}
	return nil, fmt.Errorf("unknown log kind %d", w.Kind)
}

// ConsensusItem wraps the log into a consensus digest item
func (l *Log) ConsensusItem() (core.DigestItem, error) {
	data, err := l.Encode()
	if err != nil {
		return core.DigestItem{}, err
	}
	return core.DigestItem{Kind: core.DigestConsensus, EngineID: EngineID, Data: data}, nil
}
