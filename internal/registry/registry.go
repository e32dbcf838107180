// Package registry maps token addresses to display metadata per network.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"txrecon/internal/domain"
)

// Key identifies a token on a specific network.
type Key struct {
	Network string
	Address common.Address
}

func newKey(network string, addr common.Address) Key {
	return Key{Network: strings.ToLower(strings.TrimSpace(network)), Address: addr}
}

// Registry is a concurrency-safe (network, address) -> metadata table.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]domain.TokenMetadata
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Key]domain.TokenMetadata)}
}

// Default returns a registry preloaded with well-known mainnet tokens.
func Default() *Registry {
	r := New()
	for addr, meta := range mainnetTokens {
		r.Register("mainnet", common.HexToAddress(addr), meta)
	}
	return r
}

var mainnetTokens = map[string]domain.TokenMetadata{
	"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48": {Symbol: "USDC", Decimals: 6},
	"0xdAC17F958D2ee523a2206206994597C13D831ec7": {Symbol: "USDT", Decimals: 6},
	"0x6B175474E89094C44Da98b954EedeAC495271d0F": {Symbol: "DAI", Decimals: 18},
	"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2": {Symbol: "WETH", Decimals: 18},
	"0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599": {Symbol: "WBTC", Decimals: 8},
}

// Register sets metadata for a token, replacing any existing entry.
func (r *Registry) Register(network string, addr common.Address, meta domain.TokenMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[newKey(network, addr)] = meta
}

// Lookup returns metadata for a token if known.
func (r *Registry) Lookup(network string, addr common.Address) (domain.TokenMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entries[newKey(network, addr)]
	return meta, ok
}

// Metadata returns metadata for a token, falling back to DefaultDecimals and
// no symbol.
func (r *Registry) Metadata(network string, addr common.Address) domain.TokenMetadata {
	if meta, ok := r.Lookup(network, addr); ok {
		return meta
	}
	return domain.TokenMetadata{Decimals: domain.DefaultDecimals}
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Merge copies all entries of other into r. Entries in other win.
func (r *Registry) Merge(other *Registry) {
	if other == nil || other == r {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range other.entries {
		r.entries[k] = v
	}
}

// AugmentFromAssetChanges registers metadata carried by trace asset changes.
// Trace-supplied metadata overrides static entries for the same token.
// Entries without a valid contract address or without decimals are ignored.
// Returns the number of tokens registered.
func (r *Registry) AugmentFromAssetChanges(network string, changes []domain.AssetChange) int {
	n := 0
	for _, ch := range changes {
		info := ch.AssetInfo
		if !common.IsHexAddress(info.ContractAddress) || info.Decimals == nil {
			continue
		}
		if *info.Decimals < 0 || *info.Decimals > 255 {
			continue
		}
		r.Register(network, common.HexToAddress(info.ContractAddress), domain.TokenMetadata{
			Symbol:   info.Symbol,
			Decimals: uint8(*info.Decimals),
		})
		n++
	}
	return n
}

// fileEntry is one token in a registry JSON file.
type fileEntry struct {
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}

// LoadFile reads a registry from a JSON file of the form
//
//	{"mainnet": {"0xA0b8...": {"symbol": "USDC", "decimals": 6}}}
//
// Missing decimals default to DefaultDecimals.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes registry JSON. See LoadFile for the format.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]map[string]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode token registry: %w", err)
	}

	r := New()
	for network, tokens := range raw {
		for addr, e := range tokens {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("token registry %s: invalid address %q", network, addr)
			}
			decimals := int(domain.DefaultDecimals)
			if e.Decimals != nil {
				decimals = *e.Decimals
			}
			if decimals < 0 || decimals > 255 {
				return nil, fmt.Errorf("token registry %s/%s: decimals %d out of range", network, addr, decimals)
			}
			r.Register(network, common.HexToAddress(addr), domain.TokenMetadata{
				Symbol:   e.Symbol,
				Decimals: uint8(decimals),
			})
		}
	}
	return r, nil
}
