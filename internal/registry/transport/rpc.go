package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"tckt/internal/registry/metrics"
	"tckt/internal/registry/tracer"
	"tckt/pkg/domain"
	"tckt/pkg/platform/circuit"
)

// revertErrorCode is the JSON-RPC error code geth-compatible nodes use for
// execution reverted.
const revertErrorCode = 3

// RPC executes calls over JSON-RPC, one node per chain. Each node has its own
// circuit breaker; calls are never retried.
type RPC struct {
	nodes      map[domain.ChainID]*node
	timeout    time.Duration
	httpClient *http.Client
	breakerOpt []circuit.Option
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	logger     *slog.Logger
}

type node struct {
	chainID domain.ChainID
	rpc     *rpc.Client
	eth     *ethclient.Client
	breaker *circuit.Breaker
}

// RPCOption configures the RPC caller.
type RPCOption func(*RPC)

// WithTimeout bounds every node call. Default is 10s.
func WithTimeout(d time.Duration) RPCOption {
	return func(r *RPC) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used to reach nodes.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPC) {
		r.httpClient = c
	}
}

// WithBreaker configures the per-chain circuit breakers.
func WithBreaker(opts ...circuit.Option) RPCOption {
	return func(r *RPC) {
		r.breakerOpt = append(r.breakerOpt, opts...)
	}
}

func WithMetrics(m *metrics.Metrics) RPCOption {
	return func(r *RPC) {
		r.metrics = m
	}
}

func WithTracer(t tracer.Tracer) RPCOption {
	return func(r *RPC) {
		r.tracer = t
	}
}

func WithLogger(l *slog.Logger) RPCOption {
	return func(r *RPC) {
		r.logger = l
	}
}

// DialRPC creates clients for every node URL. HTTP endpoints are not contacted
// until the first call; use Health to verify them.
func DialRPC(ctx context.Context, nodeURLs map[domain.ChainID]string, opts ...RPCOption) (*RPC, error) {
	r := &RPC{
		nodes:   make(map[domain.ChainID]*node, len(nodeURLs)),
		timeout: 10 * time.Second,
		tracer:  tracer.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var dialOpts []rpc.ClientOption
	if r.httpClient != nil {
		dialOpts = append(dialOpts, rpc.WithHTTPClient(r.httpClient))
	}

	for chainID, url := range nodeURLs {
		rc, err := rpc.DialOptions(ctx, url, dialOpts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("dial node for chain %s: %w", chainID, err)
		}
		r.nodes[chainID] = &node{
			chainID: chainID,
			rpc:     rc,
			eth:     ethclient.NewClient(rc),
			breaker: circuit.New(chainID.String(), r.breakerOpt...),
		}
	}
	return r, nil
}

// Chains returns the configured chain ids in ascending order.
func (r *RPC) Chains() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Call executes one eth_call against the latest block.
func (r *RPC) Call(ctx context.Context, chainID domain.ChainID, call Call) (out []byte, err error) {
	n, err := r.admit(chainID)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, tracer.SpanNodeCall,
		tracer.Chain(chainID),
		tracer.String(tracer.AttrMethod, call.Method),
	)
	start := time.Now()
	defer func() {
		r.finish(ctx, n, call.Method, start, err)
		span.End(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	to := call.To.Common()
	out, callErr := n.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: call.Data}, nil)
	if callErr != nil {
		return nil, classify(ctx, chainID, callErr)
	}
	return out, nil
}

// BatchCall sends all calls in one JSON-RPC batch. The batch fails as a whole
// when any element fails.
func (r *RPC) BatchCall(ctx context.Context, chainID domain.ChainID, calls []Call) (out [][]byte, err error) {
	if len(calls) == 0 {
		return nil, nil
	}
	n, err := r.admit(chainID)
	if err != nil {
		return nil, err
	}

	method := calls[0].Method
	ctx, span := r.tracer.Start(ctx, tracer.SpanNodeBatchCall,
		tracer.Chain(chainID),
		tracer.String(tracer.AttrMethod, method),
		tracer.Int64(tracer.AttrBatchSize, int64(len(calls))),
	)
	start := time.Now()
	r.metrics.ObserveBatch(len(calls))
	defer func() {
		r.finish(ctx, n, method, start, err)
		span.End(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]hexutil.Bytes, len(calls))
	elems := make([]rpc.BatchElem, len(calls))
	for i, c := range calls {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{callArg(c), "latest"},
			Result: &results[i],
		}
	}

	if batchErr := n.rpc.BatchCallContext(ctx, elems); batchErr != nil {
		return nil, classify(ctx, chainID, batchErr)
	}

	out = make([][]byte, len(calls))
	for i, el := range elems {
		if el.Error != nil {
			return nil, classify(ctx, chainID, fmt.Errorf("batch element %d: %w", i, el.Error))
		}
		out[i] = results[i]
	}
	return out, nil
}

// Health checks that the chain's node answers eth_chainId with the expected id.
func (r *RPC) Health(ctx context.Context, chainID domain.ChainID) error {
	n, ok := r.nodes[chainID]
	if !ok {
		return NewCallError(ErrorUnknownChain, chainID, "no node configured", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	got, err := n.eth.ChainID(ctx)
	if err != nil {
		return classify(ctx, chainID, err)
	}
	if !got.IsUint64() || got.Uint64() != uint64(chainID) {
		return NewCallError(ErrorBadData, chainID, "node reports chain id "+got.String(), nil)
	}
	return nil
}

// Close releases all node connections.
func (r *RPC) Close() {
	for _, n := range r.nodes {
		n.rpc.Close()
	}
}

func (r *RPC) admit(chainID domain.ChainID) (*node, error) {
	n, ok := r.nodes[chainID]
	if !ok {
		return nil, NewCallError(ErrorUnknownChain, chainID, "no node configured", nil)
	}
	if !n.breaker.Allow() {
		r.metrics.ObserveCall(chainID.String(), "", string(ErrorCircuitOpen), 0)
		return nil, NewCallError(ErrorCircuitOpen, chainID, "circuit open, node call skipped", nil)
	}
	return n, nil
}

// finish records the outcome on the breaker, metrics and logs.
func (r *RPC) finish(ctx context.Context, n *node, method string, start time.Time, err error) {
	outcome := "ok"
	var change circuit.StateChange
	if err != nil {
		category := GetCategory(err)
		outcome = string(category)
		if countsAgainstNode(category) {
			change = n.breaker.RecordFailure()
		}
	} else {
		change = n.breaker.RecordSuccess()
	}
	r.metrics.ObserveCall(n.chainID.String(), method, outcome, time.Since(start).Seconds())

	switch {
	case change.Opened:
		r.metrics.RecordCircuitTransition(n.chainID.String(), circuit.StateOpen.String())
		r.logger.ErrorContext(ctx, "circuit breaker opened",
			"chain_id", n.chainID.String(),
			"error", err,
		)
	case change.Closed:
		r.metrics.RecordCircuitTransition(n.chainID.String(), circuit.StateClosed.String())
		r.logger.InfoContext(ctx, "circuit breaker closed",
			"chain_id", n.chainID.String(),
		)
	}
}

func callArg(c Call) map[string]any {
	return map[string]any{
		"to":   c.To.Common(),
		"data": hexutil.Bytes(c.Data),
	}
}

// classify maps go-ethereum client errors onto the CallError taxonomy.
func classify(ctx context.Context, chainID domain.ChainID, err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewCallError(ErrorTimeout, chainID, "node call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewCallError(ErrorCanceled, chainID, "call canceled", err)
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return NewCallError(ErrorRateLimited, chainID, "node rate limit exceeded", err)
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return NewCallError(ErrorAuthentication, chainID, fmt.Sprintf("node rejected request: %d", httpErr.StatusCode), err)
		default:
			return NewCallError(ErrorProviderOutage, chainID, fmt.Sprintf("node http status %d", httpErr.StatusCode), err)
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == revertErrorCode || strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
			return NewCallError(ErrorReverted, chainID, "contract call reverted", err)
		}
		return NewCallError(ErrorProviderOutage, chainID, fmt.Sprintf("node json-rpc error %d", rpcErr.ErrorCode()), err)
	}

	return NewCallError(ErrorProviderOutage, chainID, "node call failed", err)
}
