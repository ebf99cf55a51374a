// Package tokenregistry holds the symbol -> per-chain-address map the
// cross-chain strategy (§4.11) routes against. Static entries are
// loaded from YAML, mirroring price-feeder's static asset-pair
// registry (other_examples).
package tokenregistry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mev-engine/mev-searcher/pkg/types"
	"gopkg.in/yaml.v3"
)

// entry is the YAML-facing shape; addresses/decimals are parsed into
// types.TokenInfo's common.Address-keyed maps on load.
type entry struct {
	Symbol   string            `yaml:"symbol"`
	Chains   map[string]string `yaml:"chains"`
	Decimals map[string]uint8  `yaml:"decimals"`
}

type document struct {
	Tokens []entry `yaml:"tokens"`
}

// Registry is a read-only, concurrency-safe lookup of TokenInfo by
// symbol, populated once at startup.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]types.TokenInfo
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{tokens: make(map[string]types.TokenInfo)}
}

// LoadYAML parses a token-registry YAML document and merges its
// entries in.
func (r *Registry) LoadYAML(data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("tokenregistry: parse yaml: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range doc.Tokens {
		chains := make(map[string]common.Address, len(e.Chains))
		for chain, addr := range e.Chains {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("tokenregistry: invalid address %q for %s on %s", addr, e.Symbol, chain)
			}
			chains[chain] = common.HexToAddress(addr)
		}
		r.tokens[e.Symbol] = types.TokenInfo{
			Symbol:   e.Symbol,
			Chains:   chains,
			Decimals: e.Decimals,
		}
	}
	return nil
}

// Put registers or overwrites a single token entry, mainly for tests.
func (r *Registry) Put(info types.TokenInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[info.Symbol] = info
}

// Lookup returns the TokenInfo for a symbol.
func (r *Registry) Lookup(symbol string) (types.TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tokens[symbol]
	return info, ok
}

// Symbols returns every registered symbol.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for s := range r.tokens {
		out = append(out, s)
	}
	return out
}
