package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChain is returned for a chain identifier the system cannot vet.
var ErrUnknownChain = errors.New("unknown chain")

type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainBase     Chain = "base"
	ChainPolygon  Chain = "polygon"
	ChainArbitrum Chain = "arbitrum"
)

// evmChainIDs maps EVM chains onto their numeric chain id.
var evmChainIDs = map[Chain]string{
	ChainEthereum: "1",
	ChainBSC:      "56",
	ChainBase:     "8453",
	ChainPolygon:  "137",
	ChainArbitrum: "42161",
}

func (c Chain) String() string {
	return string(c)
}

func (c Chain) Valid() bool {
	return c == ChainSolana || c.IsEVM()
}

func (c Chain) IsEVM() bool {
	_, ok := evmChainIDs[c]
	return ok
}

// EVMChainID returns the numeric chain id, empty for non-EVM chains.
func (c Chain) EVMChainID() string {
	return evmChainIDs[c]
}

// NormalizeAddress canonicalizes an address for comparison and map keys.
// EVM addresses are case-insensitive hex; Solana base58 addresses are not.
func (c Chain) NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if c.IsEVM() {
		return strings.ToLower(addr)
	}
	return addr
}

func ParseChain(v string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(v)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChain, v)
	}
	return c, nil
}
