package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tckt/internal/registry/calldata"
	"tckt/pkg/domain"
)

func TestMemoryAnswersZeroWithoutFixtures(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, chainID := range []domain.ChainID{0, domain.ChainAvalanche, 0xffffffff} {
		out, err := m.Call(ctx, chainID, Call{To: testContract, Data: calldata.HandleOf(testAccount)})
		require.NoError(t, err)
		h, err := calldata.DecodeHandle(out)
		require.NoError(t, err)
		assert.True(t, h.IsZero())

		out, err = m.Call(ctx, chainID, Call{To: testContract, Data: calldata.ExposureCount(testAccount)})
		require.NoError(t, err)
		n, err := calldata.DecodeCount(out)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestMemoryFixtures(t *testing.T) {
	m := NewMemory(domain.ChainAvalanche)
	ctx := context.Background()

	var h domain.Handle
	h[0] = 0x99
	m.SetHandle(domain.ChainAvalanche, testAccount, h)
	m.SetExposureCount(domain.ChainAvalanche, testAccount, 7)
	m.SetRevokeTimestamp(domain.ChainAvalanche, testAccount, 1_700_000_000)
	report := domain.ReportID{0x01}
	m.SetExposureReport(domain.ChainAvalanche, report, 1_650_000_000)
	m.SetSigner(domain.ChainAvalanche, testAccount, calldata.Signer{StartTs: 10, Deposit: 500})
	m.SetSignerThresholds(domain.ChainAvalanche, calldata.Thresholds{Count: 2, Stake: 1_000})

	out, err := m.Call(ctx, domain.ChainAvalanche, Call{Data: calldata.HandleOf(testAccount)})
	require.NoError(t, err)
	got, _ := calldata.DecodeHandle(out)
	assert.Equal(t, h, got)

	out, err = m.Call(ctx, domain.ChainAvalanche, Call{Data: calldata.ExposureCount(testAccount)})
	require.NoError(t, err)
	n, _ := calldata.DecodeCount(out)
	assert.Equal(t, uint64(7), n)

	out, err = m.Call(ctx, domain.ChainAvalanche, Call{Data: calldata.LastRevokeTimestamp(testAccount)})
	require.NoError(t, err)
	ts, _ := calldata.DecodeTimestamp(out)
	assert.Equal(t, uint64(1_700_000_000), ts)

	out, err = m.Call(ctx, domain.ChainAvalanche, Call{Data: calldata.ExposureReport(report)})
	require.NoError(t, err)
	ts, _ = calldata.DecodeTimestamp(out)
	assert.Equal(t, uint64(1_650_000_000), ts)

	outs, err := m.BatchCall(ctx, domain.ChainAvalanche, []Call{
		{Data: calldata.SignerInfo(testAccount)},
		{Data: calldata.SignerCountNeeded()},
		{Data: calldata.SignerStakeNeeded()},
	})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	s, _ := calldata.DecodeSigner(outs[0])
	assert.Equal(t, uint64(500), s.Deposit)
	count, _ := calldata.DecodeCountNeeded(outs[1])
	assert.Equal(t, uint64(2), count)
	stake, _ := calldata.DecodeStakeNeeded(outs[2])
	assert.Equal(t, uint64(1_000), stake)
}

func TestMemoryRestrictedChains(t *testing.T) {
	m := NewMemory(domain.ChainAvalanche)

	_, err := m.Call(context.Background(), domain.ChainEthereum, Call{Data: calldata.HandleOf(testAccount)})
	assert.Equal(t, ErrorUnknownChain, GetCategory(err))
	assert.Error(t, m.Health(context.Background(), domain.ChainEthereum))
	assert.NoError(t, m.Health(context.Background(), domain.ChainAvalanche))
	assert.Equal(t, []domain.ChainID{domain.ChainAvalanche}, m.Chains())
}

func TestMemoryUnknownSelectorReverts(t *testing.T) {
	m := NewMemory()
	_, err := m.Call(context.Background(), domain.ChainAvalanche, Call{Data: []byte{0xde, 0xad, 0xbe, 0xef}})
	assert.Equal(t, ErrorReverted, GetCategory(err))
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Call(ctx, domain.ChainAvalanche, Call{Data: calldata.HandleOf(testAccount)})
	assert.Equal(t, ErrorCanceled, GetCategory(err))
}
