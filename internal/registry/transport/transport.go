// Package transport executes read-only contract calls against chain nodes.
//
// Two callers are provided: RPC talks JSON-RPC to one node per chain through
// go-ethereum, Memory answers from in-process contract state.
package transport

import "tckt/pkg/domain"

// Call is a single eth_call against the latest block.
type Call struct {
	// Method names the contract function for metrics and tracing.
	Method string
	To     domain.Address
	Data   []byte
}
