// Package config loads server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"tckt/pkg/domain"
)

// Backends answering registry calls.
const (
	BackendRPC    = "rpc"
	BackendMemory = "memory"
)

// Server captures HTTP server and registry client configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	Backend         string
	NodeURLs        map[domain.ChainID]string
	Contract        domain.Address
	ChainContracts  map[domain.ChainID]domain.Address
	SignersContract domain.Address
	DefaultChain    domain.ChainID
	ExposureChain   domain.ChainID
	OTelEndpoint    string

	CallTimeout      time.Duration
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// serverEnv holds raw env values before they are parsed into domain types.
type serverEnv struct {
	Addr            string            `env:"TCKT_ADDR"                envDefault:":8080"`
	Environment     string            `env:"TCKT_ENV"                 envDefault:"development"`
	LogLevel        string            `env:"TCKT_LOG_LEVEL"           envDefault:"info"`
	Backend         string            `env:"TCKT_BACKEND"             envDefault:"rpc"`
	NodeURLs        map[string]string `env:"TCKT_NODE_URLS"           envDefault:"0xa86a=https://api.avax.network/ext/bc/C/rpc" envKeyValSeparator:"="`
	Contract        string            `env:"TCKT_CONTRACT"            envDefault:"0xcCc0a9b023177549fcf26c947edb5bfD9B230cCc"`
	ChainContracts  map[string]string `env:"TCKT_CONTRACT_OVERRIDES"  envKeyValSeparator:"="`
	SignersContract string            `env:"TCKT_SIGNERS_CONTRACT"    envDefault:"0xcCc09aA0d174271259D093C598FCe9Feb2791cCc"`
	DefaultChain    string            `env:"TCKT_DEFAULT_CHAIN"       envDefault:"0xa86a"`
	ExposureChain   string            `env:"TCKT_EXPOSURE_CHAIN"      envDefault:"0xa86a"`
	OTelEndpoint    string            `env:"TCKT_OTEL_ENDPOINT"`

	CallTimeout      time.Duration `env:"TCKT_CALL_TIMEOUT"      envDefault:"10s"`
	RequestTimeout   time.Duration `env:"TCKT_REQUEST_TIMEOUT"   envDefault:"30s"`
	ShutdownTimeout  time.Duration `env:"TCKT_SHUTDOWN_TIMEOUT"  envDefault:"15s"`
	BreakerThreshold int           `env:"TCKT_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"TCKT_BREAKER_COOLDOWN"  envDefault:"30s"`
}

// FromEnv builds a Server config from the process environment.
func FromEnv() (Server, error) {
	return load(env.Options{})
}

// FromMap builds a Server config from vars instead of the process environment.
func FromMap(vars map[string]string) (Server, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Server, error) {
	var raw serverEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return raw.build()
}

func (e serverEnv) build() (Server, error) {
	cfg := Server{
		Addr:             e.Addr,
		Environment:      e.Environment,
		LogLevel:         e.LogLevel,
		Backend:          e.Backend,
		OTelEndpoint:     e.OTelEndpoint,
		NodeURLs:         make(map[domain.ChainID]string, len(e.NodeURLs)),
		ChainContracts:   make(map[domain.ChainID]domain.Address, len(e.ChainContracts)),
		CallTimeout:      e.CallTimeout,
		RequestTimeout:   e.RequestTimeout,
		ShutdownTimeout:  e.ShutdownTimeout,
		BreakerThreshold: e.BreakerThreshold,
		BreakerCooldown:  e.BreakerCooldown,
	}

	var err error
	if cfg.DefaultChain, err = domain.ParseChainID(e.DefaultChain); err != nil {
		return Server{}, fmt.Errorf("TCKT_DEFAULT_CHAIN: %w", err)
	}
	if cfg.ExposureChain, err = domain.ParseChainID(e.ExposureChain); err != nil {
		return Server{}, fmt.Errorf("TCKT_EXPOSURE_CHAIN: %w", err)
	}
	if cfg.Contract, err = domain.ParseAddress(e.Contract); err != nil {
		return Server{}, fmt.Errorf("TCKT_CONTRACT: %w", err)
	}
	if cfg.SignersContract, err = domain.ParseAddress(e.SignersContract); err != nil {
		return Server{}, fmt.Errorf("TCKT_SIGNERS_CONTRACT: %w", err)
	}
	for k, url := range e.NodeURLs {
		id, err := domain.ParseChainID(k)
		if err != nil {
			return Server{}, fmt.Errorf("TCKT_NODE_URLS: %w", err)
		}
		if url == "" {
			return Server{}, fmt.Errorf("TCKT_NODE_URLS: empty url for chain %s", id)
		}
		cfg.NodeURLs[id] = url
	}
	for k, v := range e.ChainContracts {
		id, err := domain.ParseChainID(k)
		if err != nil {
			return Server{}, fmt.Errorf("TCKT_CONTRACT_OVERRIDES: %w", err)
		}
		addr, err := domain.ParseAddress(v)
		if err != nil {
			return Server{}, fmt.Errorf("TCKT_CONTRACT_OVERRIDES: chain %s: %w", id, err)
		}
		cfg.ChainContracts[id] = addr
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	var errs []error
	if !slices.Contains([]string{BackendRPC, BackendMemory}, s.Backend) {
		errs = append(errs, fmt.Errorf("TCKT_BACKEND: unknown backend %q", s.Backend))
	}
	if s.Backend == BackendRPC {
		if len(s.NodeURLs) == 0 {
			errs = append(errs, errors.New("TCKT_NODE_URLS: at least one node is required for the rpc backend"))
		}
		if _, ok := s.NodeURLs[s.DefaultChain]; !ok {
			errs = append(errs, fmt.Errorf("TCKT_DEFAULT_CHAIN: no node configured for %s", s.DefaultChain))
		}
		if _, ok := s.NodeURLs[s.ExposureChain]; !ok {
			errs = append(errs, fmt.Errorf("TCKT_EXPOSURE_CHAIN: no node configured for %s", s.ExposureChain))
		}
	}
	if s.CallTimeout <= 0 {
		errs = append(errs, errors.New("TCKT_CALL_TIMEOUT: must be positive"))
	}
	if s.BreakerThreshold <= 0 {
		errs = append(errs, errors.New("TCKT_BREAKER_THRESHOLD: must be positive"))
	}
	return errors.Join(errs...)
}

// Chains returns the configured chains, ascending.
func (s Server) Chains() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(s.NodeURLs))
	for id := range s.NodeURLs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
