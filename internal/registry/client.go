// Package registry reads the TCKT identity registry: the handle bound to an
// address, how often an address was reported as exposed, revocations, and the
// signer set that attests exposure reports.
//
// All operations are read-only. A Client holds only immutable configuration
// and is safe for concurrent use.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"tckt/internal/registry/calldata"
	"tckt/internal/registry/metrics"
	"tckt/internal/registry/tracer"
	"tckt/internal/registry/transport"
	"tckt/pkg/domain"
	dErrors "tckt/pkg/domain-errors"
)

// Deployed contract addresses. The registry contract shares one address on
// every supported chain.
var (
	DefaultContract        = mustAddress("0xcCc0a9b023177549fcf26c947edb5bfD9B230cCc")
	DefaultSignersContract = mustAddress("0xcCc09aA0d174271259D093C598FCe9Feb2791cCc")
)

// ErrHandleNotFound is returned with the zero handle when no handle is bound
// to the address.
var ErrHandleNotFound = dErrors.New(dErrors.CodeNotFound, "no handle bound to address")

// Caller executes contract calls on a chain. Satisfied by transport.RPC and
// transport.Memory.
type Caller interface {
	Call(ctx context.Context, chainID domain.ChainID, call transport.Call) ([]byte, error)
	BatchCall(ctx context.Context, chainID domain.ChainID, calls []transport.Call) ([][]byte, error)
	Chains() []domain.ChainID
}

// Client resolves registry state through a Caller.
type Client struct {
	caller          Caller
	contract        domain.Address
	contracts       map[domain.ChainID]domain.Address
	signersContract domain.Address
	defaultChain    domain.ChainID
	exposureChain   domain.ChainID
	logger          *slog.Logger
	tracer          tracer.Tracer
	metrics         *metrics.Metrics
}

// Option configures the Client.
type Option func(*Client)

// WithContract sets the registry contract used on chains without an override.
func WithContract(addr domain.Address) Option {
	return func(c *Client) {
		c.contract = addr
	}
}

// WithChainContracts overrides the registry contract per chain.
func WithChainContracts(contracts map[domain.ChainID]domain.Address) Option {
	return func(c *Client) {
		c.contracts = maps.Clone(contracts)
	}
}

// WithSignersContract sets the signer staking contract on the exposure chain.
func WithSignersContract(addr domain.Address) Option {
	return func(c *Client) {
		c.signersContract = addr
	}
}

// WithDefaultChain sets the chain ResolveHandle reads from.
func WithDefaultChain(id domain.ChainID) Option {
	return func(c *Client) {
		c.defaultChain = id
	}
}

// WithExposureChain sets the chain holding exposure reports and signers.
func WithExposureChain(id domain.ChainID) Option {
	return func(c *Client) {
		c.exposureChain = id
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a registry client. Without options it reads the deployed
// contracts with Avalanche C-Chain as default and exposure chain.
func New(caller Caller, opts ...Option) *Client {
	c := &Client{
		caller:          caller,
		contract:        DefaultContract,
		signersContract: DefaultSignersContract,
		defaultChain:    domain.ChainAvalanche,
		exposureChain:   domain.ChainAvalanche,
		logger:          slog.Default(),
		tracer:          tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultChain returns the chain ResolveHandle reads from.
func (c *Client) DefaultChain() domain.ChainID {
	return c.defaultChain
}

// ResolveHandle returns the handle bound to addr on the default chain.
func (c *Client) ResolveHandle(ctx context.Context, addr domain.Address) (domain.Handle, error) {
	return c.HandleOf(ctx, c.defaultChain, addr)
}

// HandleOf returns the handle bound to addr on chainID. When none is bound it
// returns the zero handle and ErrHandleNotFound.
func (c *Client) HandleOf(ctx context.Context, chainID domain.ChainID, addr domain.Address) (handle domain.Handle, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanHandleOf, tracer.Chain(chainID), tracer.Address(addr))
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrFound, err == nil))
		c.recordLookup(ctx, tracer.SpanHandleOf, chainID, err)
		span.End(ignoreNotFound(err))
	}()

	contract, err := c.contractFor(chainID)
	if err != nil {
		return domain.Handle{}, err
	}
	ret, err := c.caller.Call(ctx, chainID, transport.Call{
		Method: calldata.MethodHandleOf,
		To:     contract,
		Data:   calldata.HandleOf(addr),
	})
	if err != nil {
		return domain.Handle{}, translateCallError(err, "handle lookup failed")
	}
	handle, err = calldata.DecodeHandle(ret)
	if err != nil {
		return domain.Handle{}, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed handle returned by registry")
	}
	if handle.IsZero() {
		return domain.Handle{}, ErrHandleNotFound
	}
	return handle, nil
}

// ExposureReported returns how many times addr was reported as exposed on
// chainID. Counts on other chains are not consulted.
func (c *Client) ExposureReported(ctx context.Context, chainID domain.ChainID, addr domain.Address) (count uint64, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanExposureCount, tracer.Chain(chainID), tracer.Address(addr))
	defer func() {
		c.recordLookup(ctx, tracer.SpanExposureCount, chainID, err)
		span.End(err)
	}()

	contract, err := c.contractFor(chainID)
	if err != nil {
		return 0, err
	}
	ret, err := c.caller.Call(ctx, chainID, transport.Call{
		Method: calldata.MethodExposureCount,
		To:     contract,
		Data:   calldata.ExposureCount(addr),
	})
	if err != nil {
		return 0, translateCallError(err, "exposure lookup failed")
	}
	count, err = calldata.DecodeCount(ret)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed exposure count returned by registry")
	}
	return count, nil
}

// ExposureReportedAt returns when the exposure report reportID was last
// filed on the exposure chain, or the zero time if it never was.
func (c *Client) ExposureReportedAt(ctx context.Context, reportID domain.ReportID) (at time.Time, err error) {
	chainID := c.exposureChain
	ctx, span := c.tracer.Start(ctx, tracer.SpanExposureReport, tracer.Chain(chainID))
	defer func() {
		c.recordLookup(ctx, tracer.SpanExposureReport, chainID, err)
		span.End(err)
	}()

	contract, err := c.contractFor(chainID)
	if err != nil {
		return time.Time{}, err
	}
	ret, err := c.caller.Call(ctx, chainID, transport.Call{
		Method: calldata.MethodExposureReport,
		To:     contract,
		Data:   calldata.ExposureReport(reportID),
	})
	if err != nil {
		return time.Time{}, translateCallError(err, "exposure report lookup failed")
	}
	ts, err := calldata.DecodeTimestamp(ret)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed exposure report returned by registry")
	}
	return unixTime(ts), nil
}

// LastRevokeTimestamp queries every chain the caller serves concurrently and
// returns the most recent revocation of addr, or the zero time if it was
// never revoked. A failure on any chain fails the lookup.
func (c *Client) LastRevokeTimestamp(ctx context.Context, addr domain.Address) (at time.Time, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLastRevoke, tracer.Address(addr))
	defer func() {
		c.recordLookup(ctx, tracer.SpanLastRevoke, 0, err)
		span.End(err)
	}()

	chains := c.caller.Chains()
	if len(chains) == 0 {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidChain, "no chains configured")
	}

	timestamps := make([]uint64, len(chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, chainID := range chains {
		g.Go(func() error {
			contract, err := c.contractFor(chainID)
			if err != nil {
				return err
			}
			ret, err := c.caller.Call(gctx, chainID, transport.Call{
				Method: calldata.MethodLastRevokeTimestamp,
				To:     contract,
				Data:   calldata.LastRevokeTimestamp(addr),
			})
			if err != nil {
				return translateCallError(err, "revocation lookup failed on "+chainID.String())
			}
			ts, err := calldata.DecodeTimestamp(ret)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUpstream, "malformed revoke timestamp returned on "+chainID.String())
			}
			timestamps[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return time.Time{}, err
	}

	var latest uint64
	for _, ts := range timestamps {
		latest = max(latest, ts)
	}
	span.SetAttributes(tracer.Int64("registry.chains", int64(len(chains))))
	return unixTime(latest), nil
}

// SignerStatus is one signer's staking record.
type SignerStatus struct {
	Address domain.Address
	Info    calldata.Signer
	Valid   bool
}

// Shortfall names a quorum requirement the valid signers did not meet.
type Shortfall string

const (
	ShortfallSignerCount Shortfall = "insufficient_signer_count"
	ShortfallSignerStake Shortfall = "insufficient_signer_stake"
)

// SignerTally summarises which claimed signers were staked at a point in time
// and whether they meet the quorum the signer contract requires.
type SignerTally struct {
	At           time.Time
	Signers      []SignerStatus
	ValidCount   int
	TotalDeposit uint64
	CountNeeded  uint64
	StakeNeeded  uint64
	Shortfalls   []Shortfall
}

// Sufficient reports whether the valid signers meet both quorum thresholds.
func (t SignerTally) Sufficient() bool { return len(t.Shortfalls) == 0 }

// CheckSigners reads every claimed signer and the contract's quorum thresholds
// in one batch, then tallies the signers staked at at together with their
// total deposit. A signer is valid when it started staking before at and had
// not yet unstaked.
func (c *Client) CheckSigners(ctx context.Context, signers []domain.Address, at time.Time) (tally SignerTally, err error) {
	chainID := c.exposureChain
	ctx, span := c.tracer.Start(ctx, tracer.SpanCheckSigners,
		tracer.Chain(chainID),
		tracer.Int64(tracer.AttrBatchSize, int64(len(signers))),
	)
	defer func() {
		c.recordLookup(ctx, tracer.SpanCheckSigners, chainID, err)
		span.End(err)
	}()

	if at.Unix() <= 0 {
		return SignerTally{}, dErrors.New(dErrors.CodeInvalidInput, "timestamp must be after the unix epoch")
	}

	seen := make(map[domain.Address]struct{}, len(signers))
	calls := make([]transport.Call, 0, len(signers)+2)
	for _, s := range signers {
		if _, dup := seen[s]; dup {
			return SignerTally{}, dErrors.New(dErrors.CodeInvalidInput, "duplicate signer "+s.Hex())
		}
		seen[s] = struct{}{}
		calls = append(calls, transport.Call{
			Method: calldata.MethodSignerInfo,
			To:     c.signersContract,
			Data:   calldata.SignerInfo(s),
		})
	}
	calls = append(calls,
		transport.Call{Method: calldata.MethodSignerCountNeeded, To: c.signersContract, Data: calldata.SignerCountNeeded()},
		transport.Call{Method: calldata.MethodSignerStakeNeeded, To: c.signersContract, Data: calldata.SignerStakeNeeded()},
	)

	rets, err := c.caller.BatchCall(ctx, chainID, calls)
	if err != nil {
		return SignerTally{}, translateCallError(err, "signer lookup failed")
	}
	if len(rets) != len(calls) {
		return SignerTally{}, dErrors.New(dErrors.CodeUpstream, "signer batch returned wrong number of results")
	}

	tally = SignerTally{At: at.UTC().Truncate(time.Second)}
	tally.CountNeeded, err = calldata.DecodeCountNeeded(rets[len(signers)])
	if err != nil {
		return SignerTally{}, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed signer count threshold")
	}
	tally.StakeNeeded, err = calldata.DecodeStakeNeeded(rets[len(signers)+1])
	if err != nil {
		return SignerTally{}, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed signer stake threshold")
	}

	ts := uint64(at.Unix())
	tally.Signers = make([]SignerStatus, len(signers))
	for i, ret := range rets[:len(signers)] {
		info, err := calldata.DecodeSigner(ret)
		if err != nil {
			return SignerTally{}, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed signer info for "+signers[i].Hex())
		}
		valid := info.ValidAt(ts)
		tally.Signers[i] = SignerStatus{Address: signers[i], Info: info, Valid: valid}
		if valid {
			tally.ValidCount++
			tally.TotalDeposit += info.Deposit
		}
	}

	if uint64(tally.ValidCount) < tally.CountNeeded {
		tally.Shortfalls = append(tally.Shortfalls, ShortfallSignerCount)
	}
	if tally.TotalDeposit < tally.StakeNeeded {
		tally.Shortfalls = append(tally.Shortfalls, ShortfallSignerStake)
	}
	span.SetAttributes(tracer.Bool("registry.signers.sufficient", tally.Sufficient()))
	return tally, nil
}

func (c *Client) contractFor(chainID domain.ChainID) (domain.Address, error) {
	if addr, ok := c.contracts[chainID]; ok {
		return addr, nil
	}
	if c.contract.IsZero() {
		return domain.Address{}, dErrors.New(dErrors.CodeInvalidChain, "no registry contract configured for chain "+chainID.String())
	}
	return c.contract, nil
}

func (c *Client) recordLookup(ctx context.Context, operation string, chainID domain.ChainID, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrHandleNotFound):
		result = "not_found"
	default:
		result = string(dErrors.CodeOf(err))
		// Fan-out lookups pass no chain; report the one that failed, if known.
		var ce *transport.CallError
		if chainID == 0 && errors.As(err, &ce) {
			chainID = ce.ChainID
		}
		attrs := []any{"operation", operation, "error", err}
		if chainID != 0 {
			attrs = append(attrs, "chain_id", chainID.String())
		}
		c.logger.WarnContext(ctx, "registry lookup failed", attrs...)
	}
	c.metrics.RecordLookup(operation, result)
}

// translateCallError converts a transport failure into a domain error.
func translateCallError(err error, msg string) error {
	var ce *transport.CallError
	if !errors.As(err, &ce) {
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
	switch ce.Category {
	case transport.ErrorUnknownChain:
		return dErrors.Wrap(err, dErrors.CodeInvalidChain, "no node configured for chain "+ce.ChainID.String())
	case transport.ErrorTimeout, transport.ErrorCanceled:
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": node did not answer in time")
	case transport.ErrorProviderOutage, transport.ErrorRateLimited, transport.ErrorCircuitOpen, transport.ErrorAuthentication:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": chain node unavailable")
	case transport.ErrorReverted, transport.ErrorBadData:
		return dErrors.Wrap(err, dErrors.CodeUpstream, msg+": contract call failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrHandleNotFound) {
		return nil
	}
	return err
}

func unixTime(ts uint64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

func mustAddress(s string) domain.Address {
	a, err := domain.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
