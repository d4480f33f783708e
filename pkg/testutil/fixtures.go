package testutil

import (
	"github.com/ethereum/go-ethereum/crypto"

	"tckt/pkg/domain"
)

// TestAddrs provides fixed addresses for tests.
var TestAddrs = struct {
	Alice   domain.Address
	Bob     domain.Address
	Carol   domain.Address
	Signer1 domain.Address
	Signer2 domain.Address
	Signer3 domain.Address
}{
	Alice:   mustAddress("0x1111111111111111111111111111111111111111"),
	Bob:     mustAddress("0x2222222222222222222222222222222222222222"),
	Carol:   mustAddress("0x3333333333333333333333333333333333333333"),
	Signer1: mustAddress("0x5100000000000000000000000000000000000001"),
	Signer2: mustAddress("0x5100000000000000000000000000000000000002"),
	Signer3: mustAddress("0x5100000000000000000000000000000000000003"),
}

// HandleFor derives a deterministic non-zero handle from seed.
func HandleFor(seed string) domain.Handle {
	return domain.Handle(crypto.Keccak256Hash([]byte(seed)))
}

// ReportIDFor derives a deterministic report id from seed.
func ReportIDFor(seed string) domain.ReportID {
	return domain.ReportID(crypto.Keccak256Hash([]byte("report:" + seed)))
}

func mustAddress(s string) domain.Address {
	a, err := domain.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
