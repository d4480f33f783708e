// Package domain holds the value types shared by every layer of the registry
// client: chain identifiers, account addresses, handles and report ids.
package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	dErrors "tckt/pkg/domain-errors"
)

// ChainID identifies an EVM network. Any 32-bit value is structurally valid;
// whether the client can reach the chain is decided by configuration.
type ChainID uint32

// Chains the registry contract is deployed on.
const (
	ChainEthereum  ChainID = 0x1
	ChainBNB       ChainID = 0x38
	ChainPolygon   ChainID = 0x89
	ChainFantom    ChainID = 0xfa
	ChainZkSyncEra ChainID = 0x144
	ChainArbitrum  ChainID = 0xa4b1
	ChainAvalanche ChainID = 0xa86a
)

var chainNames = map[ChainID]string{
	ChainEthereum:  "ethereum",
	ChainBNB:       "bnb",
	ChainPolygon:   "polygon",
	ChainFantom:    "fantom",
	ChainZkSyncEra: "zksync-era",
	ChainArbitrum:  "arbitrum",
	ChainAvalanche: "avalanche",
}

// ParseChainID accepts either 0x-prefixed hex ("0xa86a") or decimal ("43114").
func ParseChainID(s string) (ChainID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "chain id cannot be empty")
	}
	var (
		v   uint64
		err error
	)
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err = strconv.ParseUint(hex, 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid chain id: "+s)
	}
	return ChainID(v), nil
}

// String renders the chain id the way wallets and node APIs do, e.g. "0xa86a".
func (c ChainID) String() string {
	return "0x" + strconv.FormatUint(uint64(c), 16)
}

// Name returns a human readable network name, or the hex id for unknown chains.
func (c ChainID) Name() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return c.String()
}

const (
	AddressLength = common.AddressLength
	HandleLength  = common.HashLength
)

// Address is a 20-byte EVM account address.
type Address [AddressLength]byte

// ParseAddress decodes a 40 hex digit address, with or without 0x prefix.
// Mixed-case checksums are not enforced.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address: must be 20 bytes of hex")
	}
	return Address(common.HexToAddress(s)), nil
}

// AddressFromBytes copies b into an Address. b must be exactly 20 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput,
			"invalid address length "+strconv.Itoa(len(b)))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Common converts to the go-ethereum representation.
func (a Address) Common() common.Address { return common.Address(a) }

// Hex returns the EIP-55 checksummed form.
func (a Address) Hex() string { return common.Address(a).Hex() }

func (a Address) String() string { return a.Hex() }

func (a Address) IsZero() bool { return a == Address{} }

// Handle is the opaque 32-byte value the registry binds to an address. In
// practice it is the digest of the encrypted identity document on IPFS.
type Handle [HandleLength]byte

// ParseHandle decodes a 64 hex digit handle, with or without 0x prefix.
func ParseHandle(s string) (Handle, error) {
	b, err := decodeWord(s)
	if err != nil {
		return Handle{}, dErrors.New(dErrors.CodeInvalidInput, "invalid handle: must be 32 bytes of hex")
	}
	return Handle(b), nil
}

func (h Handle) IsZero() bool { return h == Handle{} }

// Hex returns the 66 character 0x-prefixed encoding.
func (h Handle) Hex() string { return hexutil.Encode(h[:]) }

func (h Handle) String() string { return h.Hex() }

// ReportID identifies an exposure report filed against a human id.
type ReportID [32]byte

// ParseReportID decodes a 64 hex digit report id, with or without 0x prefix.
func ParseReportID(s string) (ReportID, error) {
	b, err := decodeWord(s)
	if err != nil {
		return ReportID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid exposure report id: must be 32 bytes of hex")
	}
	return ReportID(b), nil
}

func (r ReportID) Hex() string { return hexutil.Encode(r[:]) }

func (r ReportID) String() string { return r.Hex() }

var errWordLength = errors.New("word must be 32 bytes")

func decodeWord(s string) ([32]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, errWordLength
	}
	copy(out[:], b)
	return out, nil
}
