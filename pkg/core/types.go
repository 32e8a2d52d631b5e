package core

import (
	"fmt"
	"strings"
)

// Hash represents a 32-byte hash, hex encoded
type Hash string

// Number is a primary chain block height
type Number = uint64

// DigestKind classifies a header digest item
type DigestKind uint8

const (
	DigestOther DigestKind = iota
	DigestPreRuntime
	DigestConsensus
	DigestSeal
)

// DigestItem is one entry of a header's digest log
type DigestItem struct {
	Kind     DigestKind
	EngineID [4]byte
	Data     []byte
}

// Header is the part of a primary chain block the indexer reads
type Header struct {
	Hash       Hash
	Number     Number
	ParentHash Hash
	Digest     []DigestItem
}

// Head represents a block header event from a subscription
type Head struct {
	Number     Number
	Hash       Hash
	ParentHash Hash
}

// MappingCommitment links a primary block to the secondary block and
// transactions it committed to.
type MappingCommitment struct {
	BlockHash                 Hash
	EthereumBlockHash         Hash
	EthereumTransactionHashes []Hash
}

// TransactionMetadata locates a secondary transaction inside a primary block
type TransactionMetadata struct {
	BlockHash         Hash   `json:"block_hash"`
	EthereumBlockHash Hash   `json:"ethereum_block_hash"`
	EthereumIndex     uint32 `json:"ethereum_index"`
}

// RuntimeBlock is the secondary chain block as reported by runtime state
type RuntimeBlock struct {
	Hash              Hash
	Number            Number
	TransactionHashes []Hash
}

// SyncStrategy governs whether blocks past the best known number may be indexed
type SyncStrategy int

const (
	Standalone SyncStrategy = iota
	Parachain
)

func (s SyncStrategy) String() string {
	switch s {
	case Standalone:
		return "standalone"
	case Parachain:
		return "parachain"
	default:
		return fmt.Sprintf("SyncStrategy(%d)", int(s))
	}
}

// ParseSyncStrategy converts a config value into a SyncStrategy
func ParseSyncStrategy(s string) (SyncStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standalone", "normal":
		return Standalone, nil
	case "parachain":
		return Parachain, nil
	}
	return Standalone, fmt.Errorf("unknown sync strategy %q", s)
}
