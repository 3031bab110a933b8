// Package safeaccount reads the governing configuration of a Safe
// multisig account from its on-chain state: the owner set and the
// confirmation threshold. On-chain state is authoritative and always
// current at call time.
package safeaccount

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/safesentry/safesentry/internal/chain"
)

// safeABI covers the two view functions the analysis needs.
const safeABI = `[
	{"constant":true,"inputs":[],"name":"getOwners","outputs":[{"name":"","type":"address[]"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"getThreshold","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Service resolves Safe ownership queries through the chain reader's
// RPC client.
type Service struct {
	client chain.Client
	abi    abi.ABI
}

// New creates a Safe state reader on top of an RPC client.
func New(client chain.Client) (*Service, error) {
	parsed, err := abi.JSON(strings.NewReader(safeABI))
	if err != nil {
		return nil, fmt.Errorf("parse safe abi: %w", err)
	}
	return &Service{client: client, abi: parsed}, nil
}

// Owners returns the Safe's current owner addresses.
func (s *Service) Owners(ctx context.Context, safeAddr string) ([]string, error) {
	out, err := s.call(ctx, safeAddr, "getOwners")
	if err != nil {
		return nil, err
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("safe %s: unexpected getOwners result", safeAddr)
	}
	owners := make([]string, len(addrs))
	for i, a := range addrs {
		owners[i] = a.Hex()
	}
	return owners, nil
}

// Threshold returns the number of owner confirmations the Safe requires.
func (s *Service) Threshold(ctx context.Context, safeAddr string) (int, error) {
	out, err := s.call(ctx, safeAddr, "getThreshold")
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("safe %s: unexpected getThreshold result", safeAddr)
	}
	return int(n.Int64()), nil
}

// IsOwner reports whether addr is among the Safe's current owners.
func (s *Service) IsOwner(ctx context.Context, safeAddr, addr string) (bool, error) {
	owners, err := s.Owners(ctx, safeAddr)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if strings.EqualFold(o, addr) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) call(ctx context.Context, safeAddr, method string) ([]any, error) {
	data, err := s.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := common.HexToAddress(safeAddr)
	raw, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", chain.ErrChainUnavailable, method, safeAddr, err)
	}

	out, err := s.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s: empty result", method, safeAddr)
	}
	return out, nil
}
