package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names as used in the YAML file.
const (
	GoPlus      = "goplus"
	DexScreener = "dexscreener"
	RugCheck    = "rugcheck"
	Etherscan   = "etherscan"
	SolanaRPC   = "solana_rpc"
)

// Providers is the upstream API configuration.
type Providers struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one upstream HTTP API.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	BaseURLEnv string        `yaml:"base_url_env"` // overrides base_url when the variable is set
	APIKeyEnv  string        `yaml:"api_key_env"`
	APIKey     string        `yaml:"-"`
	RPS        float64       `yaml:"rps"`
	Burst      int           `yaml:"burst"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryBase  time.Duration `yaml:"retry_base"`
	Breaker    BreakerConfig `yaml:"breaker"`
	Disabled   bool          `yaml:"disabled"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

func DefaultProviders() Providers {
	base := ProviderConfig{
		RPS:       2,
		Burst:     2,
		Timeout:   10 * time.Second,
		Retries:   3,
		RetryBase: 200 * time.Millisecond,
		Breaker:   BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second},
	}
	with := func(url string, rps float64, burst int) ProviderConfig {
		p := base
		p.BaseURL = url
		p.RPS = rps
		p.Burst = burst
		return p
	}

	goplus := with("https://api.gopluslabs.io", 0.5, 2)
	goplus.APIKeyEnv = "GOPLUS_API_KEY"
	etherscan := with("https://api.etherscan.io/v2/api", 4, 4)
	etherscan.APIKeyEnv = "ETHERSCAN_API_KEY"
	solana := with("https://api.mainnet-beta.solana.com", 5, 5)
	solana.BaseURLEnv = "SOLANA_RPC_URL"

	return Providers{Providers: map[string]ProviderConfig{
		GoPlus:      goplus,
		DexScreener: with("https://api.dexscreener.com", 5, 5),
		RugCheck:    with("https://api.rugcheck.xyz", 1, 2),
		Etherscan:   etherscan,
		SolanaRPC:   solana,
	}}
}

// LoadProviders reads a YAML file and layers it over the defaults. Fields
// left out of the file keep their default value.
func LoadProviders(path string) (Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Providers{}, fmt.Errorf("failed to read providers config: %w", err)
	}
	return ParseProviders(data)
}

func ParseProviders(data []byte) (Providers, error) {
	var file Providers
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Providers{}, fmt.Errorf("failed to parse providers config: %w", err)
	}

	out := DefaultProviders()
	for name, p := range file.Providers {
		out.Providers[name] = merge(out.Providers[name], p)
	}
	if err := out.Validate(); err != nil {
		return Providers{}, fmt.Errorf("invalid providers config: %w", err)
	}
	return out, nil
}

func merge(def, p ProviderConfig) ProviderConfig {
	if p.BaseURL != "" {
		def.BaseURL = p.BaseURL
	}
	if p.BaseURLEnv != "" {
		def.BaseURLEnv = p.BaseURLEnv
	}
	if p.APIKeyEnv != "" {
		def.APIKeyEnv = p.APIKeyEnv
	}
	if p.RPS > 0 {
		def.RPS = p.RPS
	}
	if p.Burst > 0 {
		def.Burst = p.Burst
	}
	if p.Timeout > 0 {
		def.Timeout = p.Timeout
	}
	if p.Retries > 0 {
		def.Retries = p.Retries
	}
	if p.RetryBase > 0 {
		def.RetryBase = p.RetryBase
	}
	if p.Breaker.ConsecutiveFailures > 0 {
		def.Breaker.ConsecutiveFailures = p.Breaker.ConsecutiveFailures
	}
	if p.Breaker.OpenTimeout > 0 {
		def.Breaker.OpenTimeout = p.Breaker.OpenTimeout
	}
	def.Disabled = p.Disabled
	return def
}

func (p Providers) Validate() error {
	for name, pc := range p.Providers {
		if pc.Disabled {
			continue
		}
		if pc.BaseURL == "" && pc.BaseURLEnv == "" {
			return fmt.Errorf("provider %s: base_url is required", name)
		}
		if pc.RPS <= 0 {
			return fmt.Errorf("provider %s: rps must be positive, got %v", name, pc.RPS)
		}
		if pc.Burst <= 0 {
			return fmt.Errorf("provider %s: burst must be positive, got %d", name, pc.Burst)
		}
	}
	return nil
}

func (p *Providers) resolveEnv() {
	for name, pc := range p.Providers {
		if pc.APIKeyEnv != "" {
			pc.APIKey = os.Getenv(pc.APIKeyEnv)
		}
		if pc.BaseURLEnv != "" {
			if v := os.Getenv(pc.BaseURLEnv); v != "" {
				pc.BaseURL = v
			}
		}
		p.Providers[name] = pc
	}
}

// Get returns the named provider and whether it is configured and enabled.
func (p Providers) Get(name string) (ProviderConfig, bool) {
	pc, ok := p.Providers[name]
	if !ok || pc.Disabled || pc.BaseURL == "" {
		return pc, false
	}
	return pc, true
}
