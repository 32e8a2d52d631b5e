package digest

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/username/mapsync/pkg/core"
)

// FindLog returns the single commitment log in the digest.
// Items that do not decode as a log are ignored.
func FindLog(items []core.DigestItem) (*Log, error) {
	var found *Log
	for _, item := range items {
		if item.EngineID != EngineID {
			continue
		}
		if item.Kind != core.DigestConsensus && item.Kind != core.DigestPreRuntime {
			continue
		}
		log, err := DecodeLog(item.Data)
		if err != nil {
			continue
		}
		if found != nil {
			return nil, ErrMultipleLogs
		}
		found = log
	}
	if found == nil {
		return nil, ErrLogNotFound
	}
	return found, nil
}

// Decoder implements core.LogDecoder over header digests
type Decoder struct{}

var _ core.LogDecoder = Decoder{}

func (Decoder) FindLog(header *core.Header) (*core.PostHashes, error) {
	log, err := FindLog(header.Digest)
	if err != nil {
		return nil, err
	}
	return log.IntoHashes(), nil
}

type wireItem struct {
	Kind     uint8
	EngineID [4]byte
	Data     []byte
}

// EncodeDigest packs digest items into bytes suitable for a header extra field
func EncodeDigest(items []core.DigestItem) ([]byte, error) {
	wire := make([]wireItem, len(items))
	for i, item := range items {
		wire[i] = wireItem{Kind: uint8(item.Kind), EngineID: item.EngineID, Data: item.Data}
	}
	return rlp.EncodeToBytes(wire)
}

// DecodeDigest is the inverse of EncodeDigest
func DecodeDigest(data []byte) ([]core.DigestItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wire []wireItem
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode digest: %w", err)
	}
	items := make([]core.DigestItem, len(wire))
	for i, w := range wire {
		items[i] = core.DigestItem{Kind: core.DigestKind(w.Kind), EngineID: w.EngineID, Data: w.Data}
	}
	return items, nil
}
