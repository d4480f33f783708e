package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tckt/pkg/domain"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendRPC, cfg.Backend)
	assert.Equal(t, domain.ChainAvalanche, cfg.DefaultChain)
	assert.Equal(t, domain.ChainAvalanche, cfg.ExposureChain)
	assert.Equal(t, "0xcCc0a9b023177549fcf26c947edb5bfD9B230cCc", cfg.Contract.Hex())
	assert.Equal(t, "0xcCc09aA0d174271259D093C598FCe9Feb2791cCc", cfg.SignersContract.Hex())
	assert.Equal(t, map[domain.ChainID]string{
		domain.ChainAvalanche: "https://api.avax.network/ext/bc/C/rpc",
	}, cfg.NodeURLs)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Empty(t, cfg.ChainContracts)
	assert.Empty(t, cfg.OTelEndpoint)
}

func TestNodeURLsAndOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"TCKT_NODE_URLS":          "0x1=https://eth.example,43114=https://avax.example,0x89=https://polygon.example",
		"TCKT_CONTRACT_OVERRIDES": "0x89=0x2222222222222222222222222222222222222222",
		"TCKT_DEFAULT_CHAIN":      "1",
		"TCKT_CALL_TIMEOUT":       "2s",
		"TCKT_OTEL_ENDPOINT":      "http://collector:4318",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://eth.example", cfg.NodeURLs[domain.ChainEthereum])
	assert.Equal(t, "https://avax.example", cfg.NodeURLs[domain.ChainAvalanche])
	assert.Equal(t, domain.ChainEthereum, cfg.DefaultChain)
	assert.Equal(t, 2*time.Second, cfg.CallTimeout)
	assert.Equal(t, "http://collector:4318", cfg.OTelEndpoint)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.ChainContracts[domain.ChainPolygon].Hex())
	assert.Equal(t, []domain.ChainID{domain.ChainEthereum, domain.ChainPolygon, domain.ChainAvalanche}, cfg.Chains())
}

func TestMemoryBackendNeedsNoNodes(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"TCKT_BACKEND":       "memory",
		"TCKT_DEFAULT_CHAIN": "0x1",
	})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"TCKT_BACKEND": "ipfs"}, "TCKT_BACKEND"},
		{"bad chain id", map[string]string{"TCKT_DEFAULT_CHAIN": "avalanche"}, "TCKT_DEFAULT_CHAIN"},
		{"default chain without node", map[string]string{"TCKT_DEFAULT_CHAIN": "0x1"}, "no node configured for 0x1"},
		{"bad contract", map[string]string{"TCKT_CONTRACT": "0x1234"}, "TCKT_CONTRACT"},
		{"bad override", map[string]string{"TCKT_CONTRACT_OVERRIDES": "0x1=nope"}, "TCKT_CONTRACT_OVERRIDES"},
		{"bad node chain", map[string]string{"TCKT_NODE_URLS": "eth=https://eth.example"}, "TCKT_NODE_URLS"},
		{"zero threshold", map[string]string{"TCKT_BREAKER_THRESHOLD": "0"}, "TCKT_BREAKER_THRESHOLD"},
		{"bad duration", map[string]string{"TCKT_CALL_TIMEOUT": "soon"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
