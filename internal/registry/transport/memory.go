package transport

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tckt/internal/registry/calldata"
	"tckt/pkg/domain"
)

// Memory answers registry calls from in-process contract state. It does not
// check the called contract address: every address on a chain shares the
// same state.
//
// A Memory created without chains accepts any chain id and, until fixtures
// are set, answers zero for every lookup.
type Memory struct {
	mu     sync.RWMutex
	open   bool
	chains map[domain.ChainID]*chainState
}

type chainState struct {
	handles   map[domain.Address]domain.Handle
	exposures map[domain.Address]uint64
	revokes   map[domain.Address]uint64
	reports   map[domain.ReportID]uint64
	signers   map[domain.Address]calldata.Signer
	quorum    calldata.Thresholds
}

func newChainState() *chainState {
	return &chainState{
		handles:   make(map[domain.Address]domain.Handle),
		exposures: make(map[domain.Address]uint64),
		revokes:   make(map[domain.Address]uint64),
		reports:   make(map[domain.ReportID]uint64),
		signers:   make(map[domain.Address]calldata.Signer),
	}
}

// NewMemory creates an in-memory caller restricted to chains, or open to every
// chain when none are given.
func NewMemory(chains ...domain.ChainID) *Memory {
	m := &Memory{
		open:   len(chains) == 0,
		chains: make(map[domain.ChainID]*chainState, len(chains)),
	}
	for _, id := range chains {
		m.chains[id] = newChainState()
	}
	return m
}

// Chains returns the chains with state, ascending.
func (m *Memory) Chains() []domain.ChainID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]domain.ChainID, 0, len(m.chains))
	for id := range m.chains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Memory) SetHandle(chainID domain.ChainID, addr domain.Address, h domain.Handle) {
	m.update(chainID, func(s *chainState) { s.handles[addr] = h })
}

func (m *Memory) SetExposureCount(chainID domain.ChainID, addr domain.Address, n uint64) {
	m.update(chainID, func(s *chainState) { s.exposures[addr] = n })
}

func (m *Memory) SetRevokeTimestamp(chainID domain.ChainID, addr domain.Address, ts uint64) {
	m.update(chainID, func(s *chainState) { s.revokes[addr] = ts })
}

func (m *Memory) SetExposureReport(chainID domain.ChainID, id domain.ReportID, ts uint64) {
	m.update(chainID, func(s *chainState) { s.reports[id] = ts })
}

func (m *Memory) SetSigner(chainID domain.ChainID, addr domain.Address, signer calldata.Signer) {
	m.update(chainID, func(s *chainState) { s.signers[addr] = signer })
}

// SetSignerThresholds sets the quorum the signer contract reports.
func (m *Memory) SetSignerThresholds(chainID domain.ChainID, t calldata.Thresholds) {
	m.update(chainID, func(s *chainState) { s.quorum = t })
}

func (m *Memory) update(chainID domain.ChainID, fn func(*chainState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.chains[chainID]
	if !ok {
		s = newChainState()
		m.chains[chainID] = s
	}
	fn(s)
}

// Call decodes the selector and answers from the chain's state.
func (m *Memory) Call(ctx context.Context, chainID domain.ChainID, call Call) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCallError(ErrorCanceled, chainID, "call canceled", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.chains[chainID]
	if !ok {
		if !m.open {
			return nil, NewCallError(ErrorUnknownChain, chainID, "no node configured", nil)
		}
		state = emptyState
	}

	out, err := state.answer(call.Data)
	if err != nil {
		return nil, NewCallError(ErrorReverted, chainID, "contract call reverted", err)
	}
	return out, nil
}

// BatchCall answers each call in order.
func (m *Memory) BatchCall(ctx context.Context, chainID domain.ChainID, calls []Call) ([][]byte, error) {
	out := make([][]byte, len(calls))
	for i, c := range calls {
		ret, err := m.Call(ctx, chainID, c)
		if err != nil {
			return nil, err
		}
		out[i] = ret
	}
	return out, nil
}

// Health succeeds for every chain the caller would answer.
func (m *Memory) Health(_ context.Context, chainID domain.ChainID) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.chains[chainID]; !ok && !m.open {
		return NewCallError(ErrorUnknownChain, chainID, "no node configured", nil)
	}
	return nil
}

var emptyState = newChainState()

func (s *chainState) answer(data []byte) ([]byte, error) {
	sel, args, err := calldata.Split(data)
	if err != nil {
		return nil, err
	}

	switch sel {
	case calldata.SelHandleOf:
		addr, err := calldata.DecodeAddressArg(args)
		if err != nil {
			return nil, err
		}
		return calldata.EncodeHandle(s.handles[addr]), nil
	case calldata.SelExposureCount:
		addr, err := calldata.DecodeAddressArg(args)
		if err != nil {
			return nil, err
		}
		return calldata.EncodeUint(s.exposures[addr]), nil
	case calldata.SelExposureReport:
		word, err := calldata.DecodeWordArg(args)
		if err != nil {
			return nil, err
		}
		return calldata.EncodeUint(s.reports[domain.ReportID(word)]), nil
	case calldata.SelLastRevokeTimestamp:
		addr, err := calldata.DecodeAddressArg(args)
		if err != nil {
			return nil, err
		}
		return calldata.EncodeUint(s.revokes[addr]), nil
	case calldata.SelSignerInfo:
		addr, err := calldata.DecodeAddressArg(args)
		if err != nil {
			return nil, err
		}
		return calldata.EncodeSigner(s.signers[addr]), nil
	case calldata.SelSignerCountNeeded:
		return calldata.EncodeUint(s.quorum.Count), nil
	case calldata.SelSignerStakeNeeded:
		return calldata.EncodeUint(s.quorum.Stake), nil
	default:
		return nil, fmt.Errorf("unknown selector %s", sel)
	}
}
