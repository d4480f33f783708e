// Package calldata encodes eth_call payloads for the TCKT registry contracts
// and decodes their return words.
//
// Arguments and return values are ABI-encoded single words, except signer
// info which packs three fields into one word.
package calldata

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tckt/pkg/domain"
)

// Selector is the 4-byte function selector prefixed to every call.
type Selector [4]byte

func (s Selector) String() string { return fmt.Sprintf("0x%x", s[:]) }

var (
	SelHandleOf            = selector("handleOf(address)")
	SelExposureCount       = selector("exposureReported(address)")
	SelExposureReport      = selector("exposureReported(bytes32)")
	SelLastRevokeTimestamp = selector("lastRevokeTimestamp(address)")
	SelSignerInfo          = selector("signerInfo(address)")
	SelSignerCountNeeded   = selector("signerCountNeeded()")
	SelSignerStakeNeeded   = selector("signerStakeNeeded()")
)

func selector(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

// Method names used for metrics and tracing.
const (
	MethodHandleOf            = "handleOf"
	MethodExposureCount       = "exposureCount"
	MethodExposureReport      = "exposureReport"
	MethodLastRevokeTimestamp = "lastRevokeTimestamp"
	MethodSignerInfo          = "signerInfo"
	MethodSignerCountNeeded   = "signerCountNeeded"
	MethodSignerStakeNeeded   = "signerStakeNeeded"
)

const wordSize = 32

// timestamps are stored in the low 40 bits of their word.
const timestampBytes = 5

var (
	addressArgs = abi.Arguments{{Type: mustType("address")}}
	bytes32Args = abi.Arguments{{Type: mustType("bytes32")}}
	uint256Args = abi.Arguments{{Type: mustType("uint256")}}
)

// ErrEmptyReturn is returned when a call yields no data, which is what nodes
// answer for an address without contract code.
var ErrEmptyReturn = errors.New("empty return data")

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("calldata: abi type %s: %v", t, err))
	}
	return typ
}

func encode(sel Selector, args abi.Arguments, v any) []byte {
	packed, err := args.Pack(v)
	if err != nil {
		// Argument types are fixed at compile time.
		panic(fmt.Sprintf("calldata: pack %s: %v", sel, err))
	}
	return append(sel[:len(sel):len(sel)], packed...)
}

// HandleOf encodes handleOf(address).
func HandleOf(addr domain.Address) []byte {
	return encode(SelHandleOf, addressArgs, addr.Common())
}

// ExposureCount encodes exposureReported(address), the number of exposure
// events recorded against addr on the called chain.
func ExposureCount(addr domain.Address) []byte {
	return encode(SelExposureCount, addressArgs, addr.Common())
}

// ExposureReport encodes exposureReported(bytes32), the lookup of the last
// report filed under reportID.
func ExposureReport(reportID domain.ReportID) []byte {
	return encode(SelExposureReport, bytes32Args, [32]byte(reportID))
}

// LastRevokeTimestamp encodes lastRevokeTimestamp(address).
func LastRevokeTimestamp(addr domain.Address) []byte {
	return encode(SelLastRevokeTimestamp, addressArgs, addr.Common())
}

// SignerInfo encodes signerInfo(address) against the signer contract.
func SignerInfo(signer domain.Address) []byte {
	return encode(SelSignerInfo, addressArgs, signer.Common())
}

// SignerCountNeeded encodes signerCountNeeded().
func SignerCountNeeded() []byte {
	return append([]byte(nil), SelSignerCountNeeded[:]...)
}

// SignerStakeNeeded encodes signerStakeNeeded().
func SignerStakeNeeded() []byte {
	return append([]byte(nil), SelSignerStakeNeeded[:]...)
}

// DecodeHandle decodes a bytes32 return word.
func DecodeHandle(ret []byte) (domain.Handle, error) {
	if len(ret) == 0 {
		return domain.Handle{}, ErrEmptyReturn
	}
	vals, err := bytes32Args.Unpack(ret)
	if err != nil {
		return domain.Handle{}, fmt.Errorf("decode handle: %w", err)
	}
	word, ok := vals[0].([32]byte)
	if !ok {
		return domain.Handle{}, fmt.Errorf("decode handle: unexpected type %T", vals[0])
	}
	return domain.Handle(word), nil
}

// DecodeCount decodes a uint return word that must fit in 64 bits.
func DecodeCount(ret []byte) (uint64, error) {
	if len(ret) == 0 {
		return 0, ErrEmptyReturn
	}
	vals, err := uint256Args.Unpack(ret)
	if err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("decode count: unexpected type %T", vals[0])
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("decode count: %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

// DecodeTimestamp reads a unix timestamp from the low 40 bits of the first
// return word. Higher bits carry unrelated packed state and are ignored.
func DecodeTimestamp(ret []byte) (uint64, error) {
	if len(ret) == 0 {
		return 0, ErrEmptyReturn
	}
	if len(ret) < wordSize {
		return 0, fmt.Errorf("decode timestamp: short return data (%d bytes)", len(ret))
	}
	return beUint(ret[wordSize-timestampBytes : wordSize]), nil
}

// Signer is the packed signer record kept by the signer contract.
//
// Word layout (big endian): bytes 12-17 end timestamp, 18-23 deposit,
// 26-31 start timestamp. An end timestamp of zero means still active.
type Signer struct {
	EndTs   uint64
	Deposit uint64
	StartTs uint64
}

// ValidAt reports whether the signer was staked at the unix timestamp ts.
// A zero start timestamp is an address that never staked.
func (s Signer) ValidAt(ts uint64) bool {
	return s.StartTs != 0 && s.StartTs < ts && (s.EndTs == 0 || ts < s.EndTs)
}

// DecodeSigner unpacks a signerInfo return word.
func DecodeSigner(ret []byte) (Signer, error) {
	if len(ret) == 0 {
		return Signer{}, ErrEmptyReturn
	}
	if len(ret) < wordSize {
		return Signer{}, fmt.Errorf("decode signer: short return data (%d bytes)", len(ret))
	}
	return Signer{
		EndTs:   beUint(ret[12:18]),
		Deposit: beUint(ret[18:24]),
		StartTs: beUint(ret[26:32]),
	}, nil
}

// Thresholds are the quorum the signer contract requires.
type Thresholds struct {
	Count uint64
	Stake uint64
}

const (
	countNeededBytes = 1
	stakeNeededBytes = 6
)

// DecodeCountNeeded reads signerCountNeeded from the low byte of its word.
func DecodeCountNeeded(ret []byte) (uint64, error) {
	return decodeLow(ret, countNeededBytes, "signer count needed")
}

// DecodeStakeNeeded reads signerStakeNeeded from the low 48 bits of its word.
func DecodeStakeNeeded(ret []byte) (uint64, error) {
	return decodeLow(ret, stakeNeededBytes, "signer stake needed")
}

func decodeLow(ret []byte, n int, what string) (uint64, error) {
	if len(ret) == 0 {
		return 0, ErrEmptyReturn
	}
	if len(ret) < wordSize {
		return 0, fmt.Errorf("decode %s: short return data (%d bytes)", what, len(ret))
	}
	return beUint(ret[wordSize-n : wordSize]), nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func putUint(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// Split separates the selector from the argument words.
func Split(data []byte) (Selector, []byte, error) {
	var sel Selector
	if len(data) < len(sel) {
		return sel, nil, fmt.Errorf("calldata too short (%d bytes)", len(data))
	}
	copy(sel[:], data)
	return sel, data[len(sel):], nil
}

// DecodeAddressArg reads a single address argument.
func DecodeAddressArg(args []byte) (domain.Address, error) {
	vals, err := addressArgs.Unpack(args)
	if err != nil {
		return domain.Address{}, fmt.Errorf("decode address argument: %w", err)
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return domain.Address{}, fmt.Errorf("decode address argument: unexpected type %T", vals[0])
	}
	return domain.Address(addr), nil
}

// DecodeWordArg reads a single bytes32 argument.
func DecodeWordArg(args []byte) ([32]byte, error) {
	vals, err := bytes32Args.Unpack(args)
	if err != nil {
		return [32]byte{}, fmt.Errorf("decode bytes32 argument: %w", err)
	}
	word, ok := vals[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("decode bytes32 argument: unexpected type %T", vals[0])
	}
	return word, nil
}

// EncodeHandle builds the return word of handleOf.
func EncodeHandle(h domain.Handle) []byte {
	out := make([]byte, wordSize)
	copy(out, h[:])
	return out
}

// EncodeUint builds a uint256 return word.
func EncodeUint(v uint64) []byte {
	packed, err := uint256Args.Pack(new(big.Int).SetUint64(v))
	if err != nil {
		panic(fmt.Sprintf("calldata: pack uint256: %v", err))
	}
	return packed
}

// EncodeSigner packs a signer record into its return word.
func EncodeSigner(s Signer) []byte {
	out := make([]byte, wordSize)
	putUint(out[12:18], s.EndTs)
	putUint(out[18:24], s.Deposit)
	putUint(out[26:32], s.StartTs)
	return out
}
