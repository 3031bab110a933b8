// Package chain provides read-only access to blockchain state over an RPC
// endpoint: native balances, deployed code, and the chain id.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrChainUnavailable marks any RPC failure. Callers degrade the single
// check that depends on the read rather than aborting their whole
// operation.
var ErrChainUnavailable = errors.New("chain: rpc unavailable")

// Client abstracts the go-ethereum client so the reader can be tested
// with deterministic fakes.
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Reader answers state queries against the latest block.
type Reader struct {
	client Client
}

// Option configures the reader.
type Option func(*Reader)

// WithClient sets a custom RPC client (useful for testing).
func WithClient(c Client) Option {
	return func(r *Reader) { r.client = c }
}

// NewReader connects to the RPC endpoint unless a client was injected.
func NewReader(rpcURL string, opts ...Option) (*Reader, error) {
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		if rpcURL == "" {
			return nil, fmt.Errorf("%w: rpc url required", ErrChainUnavailable)
		}
		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
		}
		r.client = client
	}
	return r, nil
}

// Balance returns the native-token balance in wei. A valid address with
// no funds reads as zero, not an error.
func (r *Reader) Balance(ctx context.Context, addr string) (*big.Int, error) {
	bal, err := r.client.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance of %s: %v", ErrChainUnavailable, addr, err)
	}
	return bal, nil
}

// IsContract reports whether the address has deployed bytecode. An empty
// code result means an externally-owned account.
func (r *Reader) IsContract(ctx context.Context, addr string) (bool, error) {
	code, err := r.client.CodeAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return false, fmt.Errorf("%w: code at %s: %v", ErrChainUnavailable, addr, err)
	}
	return len(code) > 0, nil
}

// ChainID returns the connected chain's id.
func (r *Reader) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrChainUnavailable, err)
	}
	return id, nil
}

// RPC exposes the underlying client for callers that issue their own
// contract calls against the same connection.
func (r *Reader) RPC() Client {
	return r.client
}

// Close releases the underlying RPC connection.
func (r *Reader) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
