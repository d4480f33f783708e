// Package main provides a CLI for one-off registry lookups against the
// nodes configured through the same TCKT_* environment as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tckt/internal/platform/config"
	"tckt/internal/platform/logger"
	"tckt/internal/registry"
	"tckt/internal/registry/transport"
	"tckt/pkg/domain"
)

// exitNotFound distinguishes an unbound handle from a failed lookup.
const exitNotFound = 3

type lookupClient interface {
	DefaultChain() domain.ChainID
	HandleOf(ctx context.Context, chainID domain.ChainID, addr domain.Address) (domain.Handle, error)
	ExposureReported(ctx context.Context, chainID domain.ChainID, addr domain.Address) (uint64, error)
	ExposureReportedAt(ctx context.Context, reportID domain.ReportID) (time.Time, error)
	LastRevokeTimestamp(ctx context.Context, addr domain.Address) (time.Time, error)
	CheckSigners(ctx context.Context, signers []domain.Address, at time.Time) (registry.SignerTally, error)
}

// connectFunc builds the client lazily so --help never dials a node.
type connectFunc func(ctx context.Context) (lookupClient, error)

func main() {
	var dialed *transport.RPC
	connect := func(ctx context.Context) (lookupClient, error) {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		rpc, err := transport.DialRPC(ctx, cfg.NodeURLs, transport.WithTimeout(cfg.CallTimeout))
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		dialed = rpc
		return registry.New(rpc,
			registry.WithContract(cfg.Contract),
			registry.WithChainContracts(cfg.ChainContracts),
			registry.WithSignersContract(cfg.SignersContract),
			registry.WithDefaultChain(cfg.DefaultChain),
			registry.WithExposureChain(cfg.ExposureChain),
			registry.WithLogger(logger.NewWithWriter(io.Discard, "error")),
		), nil
	}

	err := newRootCmd(connect).ExecuteContext(context.Background())
	if dialed != nil {
		dialed.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, registry.ErrHandleNotFound) {
			os.Exit(exitNotFound)
		}
		os.Exit(1)
	}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	var (
		chain   string
		timeout time.Duration
	)
	root := &cobra.Command{
		Use:   "lookup",
		Short: "Query the TCKT registry contracts",
		Long: `Query the TCKT registry contracts.

Nodes and contracts come from TCKT_NODE_URLS, TCKT_CONTRACT and the other
TCKT_* variables read by the server.

Example:
$ TCKT_NODE_URLS=avax=https://api.avax.network/ext/bc/C/rpc lookup handle 0x1111111111111111111111111111111111111111`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&chain, "chain", "", "Chain id, hex or decimal (default: configured default chain)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Deadline for the whole lookup")

	// run resolves the client and chain, then prints whatever fn returns.
	run := func(fn func(ctx context.Context, client lookupClient, chainID domain.ChainID, args []string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := connect(ctx)
			if err != nil {
				return err
			}
			chainID := client.DefaultChain()
			if chain != "" {
				if chainID, err = domain.ParseChainID(chain); err != nil {
					return err
				}
			}
			out, err := fn(ctx, client, chainID, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "handle <address>",
			Short: "Handle bound to an address",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, client lookupClient, chainID domain.ChainID, args []string) (any, error) {
				addr, err := domain.ParseAddress(args[0])
				if err != nil {
					return nil, err
				}
				h, err := client.HandleOf(ctx, chainID, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"chain_id": chainID.String(), "address": addr.Hex(), "handle": h.Hex()}, nil
			}),
		},
		&cobra.Command{
			Use:   "exposure <address>",
			Short: "Exposure report count for an address on a chain",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, client lookupClient, chainID domain.ChainID, args []string) (any, error) {
				addr, err := domain.ParseAddress(args[0])
				if err != nil {
					return nil, err
				}
				n, err := client.ExposureReported(ctx, chainID, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"chain_id": chainID.String(), "address": addr.Hex(), "exposure_count": n}, nil
			}),
		},
		&cobra.Command{
			Use:   "revocation <address>",
			Short: "Latest revocation across every configured chain",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, client lookupClient, _ domain.ChainID, args []string) (any, error) {
				addr, err := domain.ParseAddress(args[0])
				if err != nil {
					return nil, err
				}
				t, err := client.LastRevokeTimestamp(ctx, addr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"address": addr.Hex(), "revoked": !t.IsZero(), "last_revoked_at": unixOrZero(t)}, nil
			}),
		},
		&cobra.Command{
			Use:   "report <report-id>",
			Short: "Time of the last exposure report for a report id",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, client lookupClient, _ domain.ChainID, args []string) (any, error) {
				id, err := domain.ParseReportID(args[0])
				if err != nil {
					return nil, err
				}
				t, err := client.ExposureReportedAt(ctx, id)
				if err != nil {
					return nil, err
				}
				return map[string]any{"report_id": id.Hex(), "reported": !t.IsZero(), "reported_at": unixOrZero(t)}, nil
			}),
		},
		newSignersCmd(run),
	)
	return root
}

func newSignersCmd(run func(func(context.Context, lookupClient, domain.ChainID, []string) (any, error)) func(*cobra.Command, []string) error) *cobra.Command {
	var at int64
	cmd := &cobra.Command{
		Use:   "signers <address>...",
		Short: "Tally the signers staked at a point in time",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, client lookupClient, _ domain.ChainID, args []string) (any, error) {
			signers := make([]domain.Address, 0, len(args))
			for _, s := range args {
				addr, err := domain.ParseAddress(s)
				if err != nil {
					return nil, err
				}
				signers = append(signers, addr)
			}
			ts := time.Now()
			if at > 0 {
				ts = time.Unix(at, 0)
			}
			tally, err := client.CheckSigners(ctx, signers, ts)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"timestamp":     tally.At.Unix(),
				"valid_count":   tally.ValidCount,
				"total_deposit": tally.TotalDeposit,
				"count_needed":  tally.CountNeeded,
				"stake_needed":  tally.StakeNeeded,
				"sufficient":    tally.Sufficient(),
				"shortfalls":    tally.Shortfalls,
			}, nil
		}),
	}
	cmd.Flags().Int64Var(&at, "at", 0, "Unix timestamp to evaluate (default: now)")
	return cmd
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
