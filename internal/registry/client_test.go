package registry

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks Caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tckt/internal/registry/calldata"
	"tckt/internal/registry/metrics"
	"tckt/internal/registry/mocks"
	"tckt/internal/registry/tracer"
	"tckt/internal/registry/transport"
	"tckt/pkg/domain"
	dErrors "tckt/pkg/domain-errors"
	"tckt/pkg/testutil"
)

var (
	alice = testutil.TestAddrs.Alice
	bob   = testutil.TestAddrs.Bob
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ClientSuite drives the client against a mocked caller.
type ClientSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	caller  *mocks.MockCaller
	metrics *metrics.Metrics
	client  *Client
}

func (s *ClientSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.caller = mocks.NewMockCaller(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.client = New(s.caller, WithLogger(quietLogger()), WithMetrics(s.metrics))
}

func (s *ClientSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) TestResolveHandleCallsDefaultChainContract() {
	handle := testutil.HandleFor("alice")
	s.caller.EXPECT().
		Call(gomock.Any(), domain.ChainAvalanche, transport.Call{
			Method: calldata.MethodHandleOf,
			To:     DefaultContract,
			Data:   calldata.HandleOf(alice),
		}).
		Return(calldata.EncodeHandle(handle), nil)

	got, err := s.client.ResolveHandle(context.Background(), alice)
	s.Require().NoError(err)
	s.Equal(handle, got)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues("registry.handle_of", "ok")))
}

func (s *ClientSuite) TestHandleOfZeroHandleIsNotFound() {
	s.caller.EXPECT().
		Call(gomock.Any(), domain.ChainEthereum, gomock.Any()).
		Return(calldata.EncodeHandle(domain.Handle{}), nil)

	got, err := s.client.HandleOf(context.Background(), domain.ChainEthereum, alice)
	s.True(got.IsZero())
	s.ErrorIs(err, ErrHandleNotFound)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.LookupsTotal.WithLabelValues("registry.handle_of", "not_found")))
}

func (s *ClientSuite) TestHandleOfUsesChainOverride() {
	override := testutil.TestAddrs.Carol
	client := New(s.caller,
		WithLogger(quietLogger()),
		WithChainContracts(map[domain.ChainID]domain.Address{domain.ChainPolygon: override}),
	)
	s.caller.EXPECT().
		Call(gomock.Any(), domain.ChainPolygon, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.ChainID, call transport.Call) ([]byte, error) {
			s.Equal(override, call.To)
			return calldata.EncodeHandle(testutil.HandleFor("x")), nil
		})

	_, err := client.HandleOf(context.Background(), domain.ChainPolygon, alice)
	s.NoError(err)
}

func (s *ClientSuite) TestNoContractIsInvalidChain() {
	client := New(s.caller, WithLogger(quietLogger()), WithContract(domain.Address{}))

	_, err := client.HandleOf(context.Background(), domain.ChainBNB, alice)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidChain))
}

func (s *ClientSuite) TestTransportErrorsMapToDomainCodes() {
	tests := []struct {
		category transport.ErrorCategory
		code     dErrors.Code
	}{
		{transport.ErrorUnknownChain, dErrors.CodeInvalidChain},
		{transport.ErrorTimeout, dErrors.CodeTimeout},
		{transport.ErrorCanceled, dErrors.CodeTimeout},
		{transport.ErrorProviderOutage, dErrors.CodeUnavailable},
		{transport.ErrorRateLimited, dErrors.CodeUnavailable},
		{transport.ErrorCircuitOpen, dErrors.CodeUnavailable},
		{transport.ErrorAuthentication, dErrors.CodeUnavailable},
		{transport.ErrorReverted, dErrors.CodeUpstream},
		{transport.ErrorBadData, dErrors.CodeUpstream},
		{transport.ErrorInternal, dErrors.CodeInternal},
	}
	for _, tt := range tests {
		s.Run(string(tt.category), func() {
			callErr := transport.NewCallError(tt.category, domain.ChainAvalanche, "boom", nil)
			s.caller.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, callErr)

			_, err := s.client.ExposureReported(context.Background(), domain.ChainAvalanche, alice)
			s.Equal(tt.code, dErrors.CodeOf(err))

			var ce *transport.CallError
			s.Require().ErrorAs(err, &ce)
			s.Equal(tt.category, ce.Category)
		})
	}
}

func (s *ClientSuite) TestMalformedReturnIsUpstream() {
	s.caller.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{0x01}, nil)

	_, err := s.client.HandleOf(context.Background(), domain.ChainAvalanche, alice)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

func (s *ClientSuite) TestEmptyReturnIsUpstream() {
	s.caller.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := s.client.ExposureReported(context.Background(), domain.ChainAvalanche, alice)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	s.ErrorIs(err, calldata.ErrEmptyReturn)
}

func (s *ClientSuite) TestLastRevokeTimestampFailsWhenAnyChainFails() {
	s.caller.EXPECT().Chains().Return([]domain.ChainID{domain.ChainEthereum, domain.ChainAvalanche})
	s.caller.EXPECT().
		Call(gomock.Any(), domain.ChainEthereum, gomock.Any()).
		Return(calldata.EncodeUint(100), nil)
	s.caller.EXPECT().
		Call(gomock.Any(), domain.ChainAvalanche, gomock.Any()).
		Return(nil, transport.NewCallError(transport.ErrorProviderOutage, domain.ChainAvalanche, "down", nil))

	_, err := s.client.LastRevokeTimestamp(context.Background(), alice)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ClientSuite) TestLastRevokeTimestampWithoutChains() {
	s.caller.EXPECT().Chains().Return(nil)

	_, err := s.client.LastRevokeTimestamp(context.Background(), alice)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidChain))
}

func (s *ClientSuite) TestCheckSignersSendsOneBatch() {
	signers := []domain.Address{testutil.TestAddrs.Signer1, testutil.TestAddrs.Signer2}
	s.caller.EXPECT().
		BatchCall(gomock.Any(), domain.ChainAvalanche, gomock.Len(4)).
		DoAndReturn(func(_ context.Context, _ domain.ChainID, calls []transport.Call) ([][]byte, error) {
			for i, c := range calls {
				s.Equal(DefaultSignersContract, c.To)
				if i < len(signers) {
					s.Equal(calldata.SignerInfo(signers[i]), c.Data)
				}
			}
			s.Equal(calldata.SignerCountNeeded(), calls[2].Data)
			s.Equal(calldata.SignerStakeNeeded(), calls[3].Data)
			return [][]byte{
				calldata.EncodeSigner(calldata.Signer{StartTs: 100, Deposit: 7}),
				calldata.EncodeSigner(calldata.Signer{StartTs: 100, EndTs: 150, Deposit: 9}),
				calldata.EncodeUint(1),
				calldata.EncodeUint(5),
			}, nil
		})

	tally, err := s.client.CheckSigners(context.Background(), signers, time.Unix(200, 0))
	s.Require().NoError(err)
	s.Equal(1, tally.ValidCount)
	s.Equal(uint64(7), tally.TotalDeposit)
	s.True(tally.Signers[0].Valid)
	s.False(tally.Signers[1].Valid)
	s.Equal(uint64(1), tally.CountNeeded)
	s.Equal(uint64(5), tally.StakeNeeded)
	s.True(tally.Sufficient())
}

func (s *ClientSuite) TestCheckSignersShortBatchIsUpstream() {
	s.caller.EXPECT().
		BatchCall(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([][]byte{calldata.EncodeSigner(calldata.Signer{StartTs: 1})}, nil)

	_, err := s.client.CheckSigners(context.Background(), []domain.Address{alice}, time.Unix(200, 0))
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

func (s *ClientSuite) TestCheckSignersMalformedThresholdIsUpstream() {
	s.caller.EXPECT().
		BatchCall(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([][]byte{calldata.EncodeSigner(calldata.Signer{StartTs: 1}), {}, calldata.EncodeUint(1)}, nil)

	_, err := s.client.CheckSigners(context.Background(), []domain.Address{alice}, time.Unix(200, 0))
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	s.ErrorIs(err, calldata.ErrEmptyReturn)
}

func (s *ClientSuite) TestCheckSignersRejectsDuplicates() {
	_, err := s.client.CheckSigners(context.Background(), []domain.Address{alice, bob, alice}, time.Unix(200, 0))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ClientSuite) TestCheckSignersRejectsPreEpochTimestamp() {
	_, err := s.client.CheckSigners(context.Background(), []domain.Address{alice}, time.Time{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ClientSuite) TestCheckSignersEmptyListStillReadsThresholds() {
	s.caller.EXPECT().
		BatchCall(gomock.Any(), domain.ChainAvalanche, gomock.Len(2)).
		Return([][]byte{calldata.EncodeUint(2), calldata.EncodeUint(0)}, nil)

	tally, err := s.client.CheckSigners(context.Background(), nil, time.Unix(200, 0))
	s.Require().NoError(err)
	s.Zero(tally.ValidCount)
	s.Empty(tally.Signers)
	s.Equal([]Shortfall{ShortfallSignerCount}, tally.Shortfalls)
	s.False(tally.Sufficient())
}

func TestFanOutFailureLogsFailingChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mocks.NewMockCaller(ctrl)
	caller.EXPECT().Chains().Return([]domain.ChainID{domain.ChainEthereum})
	caller.EXPECT().
		Call(gomock.Any(), domain.ChainEthereum, gomock.Any()).
		Return(nil, transport.NewCallError(transport.ErrorProviderOutage, domain.ChainEthereum, "down", nil))

	var buf bytes.Buffer
	client := New(caller, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	_, err := client.LastRevokeTimestamp(context.Background(), alice)
	require.Error(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, tracer.SpanLastRevoke, entry["operation"])
	assert.Equal(t, domain.ChainEthereum.String(), entry["chain_id"])
	assert.NotEqual(t, domain.ChainID(0).String(), entry["chain_id"])
}

// The tests below run against the in-memory contract fixture.

func TestStubBehaviourWithoutFixtures(t *testing.T) {
	client := New(transport.NewMemory(), WithLogger(quietLogger()))
	ctx := context.Background()

	handle, err := client.ResolveHandle(ctx, alice)
	assert.Equal(t, domain.Handle{}, handle)
	assert.ErrorIs(t, err, ErrHandleNotFound)

	for _, chainID := range []domain.ChainID{0, 1, domain.ChainAvalanche, 0xffffffff} {
		for _, addr := range []domain.Address{{}, alice, bob} {
			n, err := client.ExposureReported(ctx, chainID, addr)
			require.NoError(t, err)
			assert.Zero(t, n)
		}
	}
}

func TestExposureCountsArePerChain(t *testing.T) {
	mem := transport.NewMemory(domain.ChainEthereum, domain.ChainAvalanche)
	mem.SetExposureCount(domain.ChainAvalanche, alice, 3)
	client := New(mem, WithLogger(quietLogger()))
	ctx := context.Background()

	n, err := client.ExposureReported(ctx, domain.ChainAvalanche, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	n, err = client.ExposureReported(ctx, domain.ChainEthereum, alice)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = client.ExposureReported(ctx, domain.ChainPolygon, alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidChain))
}

func TestRepeatedAndConcurrentLookupsAgree(t *testing.T) {
	mem := transport.NewMemory(domain.ChainAvalanche)
	handle := testutil.HandleFor("alice")
	mem.SetHandle(domain.ChainAvalanche, alice, handle)
	mem.SetExposureCount(domain.ChainAvalanche, alice, 2)
	client := New(mem, WithLogger(quietLogger()))

	result := testutil.RunConcurrent(64, func(idx int) error {
		addr := alice
		if idx%2 == 1 {
			addr = bob
		}
		h, err := client.ResolveHandle(context.Background(), addr)
		if addr == bob {
			if !h.IsZero() {
				return errors.New("bob resolved to a handle")
			}
			return err
		}
		if err != nil {
			return err
		}
		if h != handle {
			return errors.New("handle mismatch")
		}
		n, err := client.ExposureReported(context.Background(), domain.ChainAvalanche, addr)
		if err != nil {
			return err
		}
		if n != 2 {
			return errors.New("count mismatch")
		}
		return nil
	})

	assert.Equal(t, int32(32), result.Successes)
	assert.Equal(t, int32(32), result.NotFounds)
	assert.Zero(t, result.Errors)
}

func TestLastRevokeTimestampTakesLatestChain(t *testing.T) {
	mem := transport.NewMemory(domain.ChainEthereum, domain.ChainAvalanche, domain.ChainPolygon)
	mem.SetRevokeTimestamp(domain.ChainEthereum, alice, 1_600_000_000)
	mem.SetRevokeTimestamp(domain.ChainPolygon, alice, 1_700_000_000)
	client := New(mem, WithLogger(quietLogger()))
	ctx := context.Background()

	at, err := client.LastRevokeTimestamp(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), at)

	at, err = client.LastRevokeTimestamp(ctx, bob)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestExposureReportedAtReadsExposureChain(t *testing.T) {
	mem := transport.NewMemory(domain.ChainAvalanche, domain.ChainFantom)
	report := testutil.ReportIDFor("leak")
	mem.SetExposureReport(domain.ChainFantom, report, 1_650_000_000)
	ctx := context.Background()

	at, err := New(mem, WithLogger(quietLogger()), WithExposureChain(domain.ChainFantom)).ExposureReportedAt(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, int64(1_650_000_000), at.Unix())

	at, err = New(mem, WithLogger(quietLogger())).ExposureReportedAt(ctx, report)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestCheckSignersValidityWindow(t *testing.T) {
	mem := transport.NewMemory(domain.ChainAvalanche)
	s1, s2, s3 := testutil.TestAddrs.Signer1, testutil.TestAddrs.Signer2, testutil.TestAddrs.Signer3
	mem.SetSigner(domain.ChainAvalanche, s1, calldata.Signer{StartTs: 1000, Deposit: 100})
	mem.SetSigner(domain.ChainAvalanche, s2, calldata.Signer{StartTs: 1000, EndTs: 2000, Deposit: 50})
	mem.SetSigner(domain.ChainAvalanche, s3, calldata.Signer{StartTs: 1500, Deposit: 25})
	mem.SetSignerThresholds(domain.ChainAvalanche, calldata.Thresholds{Count: 2, Stake: 140})
	client := New(mem, WithLogger(quietLogger()))
	signers := []domain.Address{s1, s2, s3}

	tests := []struct {
		name       string
		at         int64
		valid      int
		deposit    uint64
		shortfalls []Shortfall
	}{
		{"before any stake", 1000, 0, 0, []Shortfall{ShortfallSignerCount, ShortfallSignerStake}},
		{"first two staked", 1200, 2, 150, nil},
		{"all staked", 1800, 3, 175, nil},
		{"second unstaked at end", 2000, 2, 125, []Shortfall{ShortfallSignerStake}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally, err := client.CheckSigners(context.Background(), signers, time.Unix(tt.at, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, tally.ValidCount)
			assert.Equal(t, tt.deposit, tally.TotalDeposit)
			assert.Len(t, tally.Signers, 3)
			assert.Equal(t, uint64(2), tally.CountNeeded)
			assert.Equal(t, uint64(140), tally.StakeNeeded)
			assert.Equal(t, tt.shortfalls, tally.Shortfalls)
		})
	}
}

func TestCheckSignersUnseededSignersAreInvalid(t *testing.T) {
	client := New(transport.NewMemory(), WithLogger(quietLogger()))

	tally, err := client.CheckSigners(context.Background(), []domain.Address{alice, bob}, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Zero(t, tally.ValidCount)
	assert.Zero(t, tally.TotalDeposit)
	for _, st := range tally.Signers {
		assert.False(t, st.Valid, st.Address.Hex())
	}
	assert.True(t, tally.Sufficient(), "zero thresholds are always met")
}
