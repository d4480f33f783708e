// Package tracer is a small tracing abstraction for the registry client.
//
// The client and transport depend on Tracer and Span only; OTelTracer adapts
// them to OpenTelemetry and NoopTracer is used in tests and when tracing is
// disabled.
package tracer

import (
	"context"
	"time"

	"tckt/pkg/domain"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Chain tags a span with the chain id in hex form.
func Chain(id domain.ChainID) Attribute {
	return String(AttrChainID, id.String())
}

// Address tags a span with a shortened address. Full addresses link a trace
// to an on-chain identity, so only the first and last two bytes are kept.
func Address(a domain.Address) Attribute {
	return String(AttrAddress, ShortAddress(a))
}

// ShortAddress renders an address as 0x1234…abcd.
func ShortAddress(a domain.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

// Span names.
const (
	SpanHandleOf       = "registry.handle_of"
	SpanExposureCount  = "registry.exposure_count"
	SpanExposureReport = "registry.exposure_report"
	SpanLastRevoke     = "registry.last_revoke"
	SpanCheckSigners   = "registry.check_signers"
	SpanNodeCall       = "registry.node.eth_call"
	SpanNodeBatchCall  = "registry.node.batch_call"
)

// Attribute keys.
const (
	AttrChainID   = "chain.id"
	AttrAddress   = "account.address"
	AttrMethod    = "contract.method"
	AttrFound     = "registry.found"
	AttrBatchSize = "rpc.batch_size"
	AttrCategory  = "error.category"
)
