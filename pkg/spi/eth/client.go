package eth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/digest"
	"github.com/username/mapsync/pkg/spi"
)

// Client implements spi.ChainBackend and spi.RuntimeAPI over JSON-RPC.
// The header digest is carried RLP encoded in the header's extra data.
type Client struct {
	rpc    *ethclient.Client
	raw    *rpc.Client
	leaves core.LeafTracker
}

var (
	_ spi.ChainBackend       = (*Client)(nil)
	_ spi.RuntimeAPI         = (*Client)(nil)
	_ spi.HeadSource         = (*Client)(nil)
	_ spi.SubscriptionSource = (*Client)(nil)
)

// NewClient creates a new Client connected to the given URL
func NewClient(rawurl string, leaves core.LeafTracker) (*Client, error) {
	raw, err := rpc.DialContext(context.Background(), rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawurl, err)
	}
	return NewClientWithRPC(raw, leaves), nil
}

// NewClientWithRPC wraps an established RPC connection
func NewClientWithRPC(raw *rpc.Client, leaves core.LeafTracker) *Client {
	return &Client{rpc: ethclient.NewClient(raw), raw: raw, leaves: leaves}
}

// Header fetches a header by hash. Unknown hashes yield nil, nil.
func (c *Client) Header(ctx context.Context, hash core.Hash) (*core.Header, error) {
	header, err := c.rpc.HeaderByHash(ctx, common.HexToHash(string(hash)))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCoreHeader(header), nil
}

// BestNumber returns the node's latest block number
func (c *Client) BestNumber(ctx context.Context) (core.Number, error) {
	return c.rpc.BlockNumber(ctx)
}

// Leaves returns the tips observed so far, seeding the tracker with the latest head
func (c *Client) Leaves(ctx context.Context) ([]core.Hash, error) {
	if c.leaves.Len() == 0 {
		if _, err := c.LatestHead(ctx); err != nil {
			return nil, err
		}
	}
	return c.leaves.Leaves(), nil
}

// LatestHead returns the latest head from the node
func (c *Client) LatestHead(ctx context.Context) (*core.Head, error) {
	header, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	return c.observe(header), nil
}

func (c *Client) observe(header *types.Header) *core.Head {
	head := &core.Head{
		Number:     header.Number.Uint64(),
		Hash:       core.Hash(header.Hash().Hex()),
		ParentHash: core.Hash(header.ParentHash.Hex()),
	}
	c.leaves.AddHead(head)
	return head
}

func toCoreHeader(header *types.Header) *core.Header {
	// extra data that is not a digest simply carries no commitment
	items, _ := digest.DecodeDigest(header.Extra)
	return &core.Header{
		Hash:       core.Hash(header.Hash().Hex()),
		Number:     header.Number.Uint64(),
		ParentHash: core.Hash(header.ParentHash.Hex()),
		Digest:     items,
	}
}

type runtimeBlock struct {
	Hash         common.Hash    `json:"hash"`
	Number       hexutil.Uint64 `json:"number"`
	Transactions []common.Hash  `json:"transactions"`
}

// APIVersion calls runtime_apiVersion at the given block. A null result means absent.
func (c *Client) APIVersion(ctx context.Context, at core.Hash) (uint32, bool, error) {
	var version *hexutil.Uint
	if err := c.raw.CallContext(ctx, &version, "runtime_apiVersion", common.HexToHash(string(at))); err != nil {
		return 0, false, err
	}
	if version == nil {
		return 0, false, nil
	}
	return uint32(*version), true, nil
}

// CurrentBlock calls runtime_currentBlock at the given block
func (c *Client) CurrentBlock(ctx context.Context, at core.Hash) (*core.RuntimeBlock, error) {
	var block *runtimeBlock
	if err := c.raw.CallContext(ctx, &block, "runtime_currentBlock", common.HexToHash(string(at))); err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	txs := make([]core.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		txs[i] = core.Hash(tx.Hex())
	}
	return &core.RuntimeBlock{
		Hash:              core.Hash(block.Hash.Hex()),
		Number:            uint64(block.Number),
		TransactionHashes: txs,
	}, nil
}

// SubscribeNewHead subscribes to new block headers
// Note: This only works if connected via WS/IPC
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *core.Head) (spi.Subscription, error) {
	// Internal channel to receive geth types
	ethCh := make(chan *types.Header)
	sub, err := c.rpc.SubscribeNewHead(ctx, ethCh)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch) // Close downstream when done

		for {
			select {
			case header := <-ethCh:
				select {
				case ch <- c.observe(header):
				case <-ctx.Done():
					return
				}
			case <-sub.Err():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}
