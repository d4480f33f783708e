package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tckt/internal/registry"
	"tckt/internal/registry/transport"
	"tckt/pkg/domain"
	dErrors "tckt/pkg/domain-errors"
	"tckt/pkg/testutil"
)

// The fake node and the RPC transport must agree on the wire format.
func TestFakeNodeServesRegistryClient(t *testing.T) {
	mem := transport.NewMemory(domain.ChainAvalanche)
	seed(mem, domain.ChainAvalanche)

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethService{chainID: domain.ChainAvalanche, state: mem}))
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Stop()

	ctx := context.Background()
	caller, err := transport.DialRPC(ctx, map[domain.ChainID]string{domain.ChainAvalanche: ts.URL})
	require.NoError(t, err)
	defer caller.Close()

	require.NoError(t, caller.Health(ctx, domain.ChainAvalanche))

	client := registry.New(caller, registry.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a := testutil.TestAddrs

	h, err := client.ResolveHandle(ctx, a.Alice)
	require.NoError(t, err)
	assert.Equal(t, testutil.HandleFor("alice"), h)

	_, err = client.ResolveHandle(ctx, a.Bob)
	assert.ErrorIs(t, err, registry.ErrHandleNotFound)

	n, err := client.ExposureReported(ctx, domain.ChainAvalanche, a.Bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	at, err := client.LastRevokeTimestamp(ctx, a.Carol)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), at.Unix())

	tally, err := client.CheckSigners(ctx, []domain.Address{a.Signer1, a.Signer2}, time.Unix(1_660_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, tally.ValidCount)
	assert.Equal(t, uint64(1000), tally.TotalDeposit)
}

func TestFakeNodeRevertsUnknownSelector(t *testing.T) {
	mem := transport.NewMemory(domain.ChainEthereum)
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethService{chainID: domain.ChainEthereum, state: mem}))
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Stop()

	ctx := context.Background()
	caller, err := transport.DialRPC(ctx, map[domain.ChainID]string{domain.ChainEthereum: ts.URL})
	require.NoError(t, err)
	defer caller.Close()

	_, err = caller.Call(ctx, domain.ChainEthereum, transport.Call{To: testutil.TestAddrs.Alice, Data: []byte{1, 2, 3, 4}})
	assert.Equal(t, transport.ErrorReverted, transport.GetCategory(err))

	client := registry.New(caller, registry.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err = client.HandleOf(ctx, domain.ChainEthereum, testutil.TestAddrs.Alice)
	assert.ErrorIs(t, err, registry.ErrHandleNotFound)
	assert.False(t, dErrors.HasCode(err, dErrors.CodeUpstream))
}
