// Command chain-node is a fake EVM JSON-RPC node for local runs and e2e
// tests. It answers eth_chainId and eth_call against in-memory registry
// state seeded with fixed test accounts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"tckt/internal/platform/logger"
	"tckt/internal/registry/calldata"
	"tckt/internal/registry/transport"
	"tckt/pkg/domain"
	"tckt/pkg/testutil"
)

const (
	defaultPort      = "8545"
	defaultChainID   = "0xa86a"
	defaultLatencyMs = "0"
)

func main() {
	log := logger.New("info")

	chainID, err := domain.ParseChainID(getEnv("CHAIN_ID", defaultChainID))
	if err != nil {
		log.Error("invalid CHAIN_ID", "error", err)
		os.Exit(1)
	}
	latencyMs, err := strconv.Atoi(getEnv("LATENCY_MS", defaultLatencyMs))
	if err != nil {
		log.Error("invalid LATENCY_MS", "error", err)
		os.Exit(1)
	}

	mem := transport.NewMemory(chainID)
	seed(mem, chainID)

	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethService{
		chainID: chainID,
		state:   mem,
		latency: time.Duration(latencyMs) * time.Millisecond,
	}); err != nil {
		log.Error("register eth service", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	port := getEnv("PORT", defaultPort)
	log.Info("mock chain node starting",
		"port", port,
		"chain_id", chainID.String(),
		"latency_ms", latencyMs,
	)
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// seed binds the fixed test accounts. e2e tests rely on these values.
func seed(mem *transport.Memory, chainID domain.ChainID) {
	a := testutil.TestAddrs
	mem.SetHandle(chainID, a.Alice, testutil.HandleFor("alice"))
	mem.SetExposureCount(chainID, a.Bob, 3)
	mem.SetRevokeTimestamp(chainID, a.Carol, 1_700_000_000)
	mem.SetExposureReport(chainID, testutil.ReportIDFor("leak"), 1_650_000_000)
	mem.SetSigner(chainID, a.Signer1, calldata.Signer{StartTs: 1_600_000_000, Deposit: 1000})
	mem.SetSigner(chainID, a.Signer2, calldata.Signer{StartTs: 1_600_000_000, EndTs: 1_650_000_000, Deposit: 500})
	mem.SetSignerThresholds(chainID, calldata.Thresholds{Count: 1, Stake: 1000})
}

// ethService is registered under the "eth" namespace; go-ethereum maps
// ChainId to eth_chainId and Call to eth_call.
type ethService struct {
	chainID domain.ChainID
	state   *transport.Memory
	latency time.Duration
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (s *ethService) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(s.chainID)
}

func (s *ethService) Call(ctx context.Context, args callArgs, _ *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if args.To == nil {
		return nil, errors.New("missing to address")
	}

	var data []byte
	switch {
	case args.Input != nil:
		data = *args.Input
	case args.Data != nil:
		data = *args.Data
	}

	out, err := s.state.Call(ctx, s.chainID, transport.Call{
		To:   domain.Address(*args.To),
		Data: data,
	})
	if err != nil {
		if transport.GetCategory(err) == transport.ErrorReverted {
			return nil, revertError{err.Error()}
		}
		return nil, err
	}
	return out, nil
}

// revertError carries the JSON-RPC code nodes use for reverted execution.
type revertError struct{ msg string }

func (e revertError) Error() string  { return "execution reverted: " + e.msg }
func (e revertError) ErrorCode() int { return 3 }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
