package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"tckt/pkg/domain"
	"tckt/pkg/testutil"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseBody() []byte
	GetLastResponseStatus() int
	GetLastLatency() time.Duration
}

// RegisterSteps registers registry lookup step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	// Handle steps
	ctx.Step(`^I resolve the handle of "([^"]*)"$`, steps.resolveHandle)
	ctx.Step(`^I resolve the handle of "([^"]*)" on chain "([^"]*)"$`, steps.resolveHandleOnChain)
	ctx.Step(`^the handle should be derived from "([^"]*)"$`, steps.handleShouldBeDerivedFrom)

	// Exposure steps
	ctx.Step(`^I read the exposure count of "([^"]*)" on chain "([^"]*)"$`, steps.readExposure)
	ctx.Step(`^I read the exposure report "([^"]*)"$`, steps.readExposureReport)

	// Revocation steps
	ctx.Step(`^I read the revocation of "([^"]*)"$`, steps.readRevocation)

	// Signer steps
	ctx.Step(`^I check signers "([^"]*)" at timestamp (\d+)$`, steps.checkSigners)
	ctx.Step(`^signer "([^"]*)" should be (valid|invalid)$`, steps.signerShouldBe)

	// Repeatability steps
	ctx.Step(`^I save the response as "([^"]*)"$`, steps.saveResponse)
	ctx.Step(`^the response body should match "([^"]*)"$`, steps.responseShouldMatchSaved)
	ctx.Step(`^the response time should be less than (\d+) milliseconds$`, steps.responseTimeLessThan)
}

type registrySteps struct {
	tc             TestContext
	savedResponses map[string]string
}

// fixture names map to the addresses seeded by mocks/chain-node.
func address(name string) (string, error) {
	a := testutil.TestAddrs
	switch strings.ToLower(name) {
	case "alice":
		return a.Alice.Hex(), nil
	case "bob":
		return a.Bob.Hex(), nil
	case "carol":
		return a.Carol.Hex(), nil
	case "signer1":
		return a.Signer1.Hex(), nil
	case "signer2":
		return a.Signer2.Hex(), nil
	case "signer3":
		return a.Signer3.Hex(), nil
	}
	if strings.HasPrefix(name, "0x") {
		return name, nil
	}
	return "", fmt.Errorf("unknown fixture address %q", name)
}

func (s *registrySteps) resolveHandle(ctx context.Context, name string) error {
	addr, err := address(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/addresses/"+addr+"/handle", nil)
}

func (s *registrySteps) resolveHandleOnChain(ctx context.Context, name, chain string) error {
	addr, err := address(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/chains/"+chain+"/addresses/"+addr+"/handle", nil)
}

func (s *registrySteps) handleShouldBeDerivedFrom(ctx context.Context, seed string) error {
	value, err := s.tc.GetResponseField("handle")
	if err != nil {
		return err
	}
	expected := testutil.HandleFor(seed).Hex()
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected handle %s but got %v", expected, value)
	}
	return nil
}

func (s *registrySteps) readExposure(ctx context.Context, name, chain string) error {
	addr, err := address(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/chains/"+chain+"/addresses/"+addr+"/exposure", nil)
}

func (s *registrySteps) readExposureReport(ctx context.Context, seed string) error {
	id := testutil.ReportIDFor(seed).Hex()
	if _, err := domain.ParseReportID(seed); err == nil {
		id = seed
	}
	return s.tc.GET("/v1/exposure-reports/"+id, nil)
}

func (s *registrySteps) readRevocation(ctx context.Context, name string) error {
	addr, err := address(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/addresses/"+addr+"/revocation", nil)
}

func (s *registrySteps) checkSigners(ctx context.Context, names string, timestamp int64) error {
	var signers []string
	for _, name := range strings.Split(names, ",") {
		addr, err := address(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		signers = append(signers, addr)
	}
	return s.tc.POST("/v1/signers/check", map[string]interface{}{
		"signers":   signers,
		"timestamp": timestamp,
	})
}

func (s *registrySteps) signerShouldBe(ctx context.Context, name, state string) error {
	addr, err := address(name)
	if err != nil {
		return err
	}

	var body struct {
		Signers []struct {
			Address string `json:"address"`
			Valid   bool   `json:"valid"`
		} `json:"signers"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	for _, signer := range body.Signers {
		if !strings.EqualFold(signer.Address, addr) {
			continue
		}
		if signer.Valid != (state == "valid") {
			return fmt.Errorf("signer %s: expected %s", name, state)
		}
		return nil
	}
	return fmt.Errorf("signer %s not found in response", name)
}

func (s *registrySteps) saveResponse(ctx context.Context, key string) error {
	if s.savedResponses == nil {
		s.savedResponses = make(map[string]string)
	}
	s.savedResponses[key] = string(s.tc.GetLastResponseBody())
	return nil
}

func (s *registrySteps) responseShouldMatchSaved(ctx context.Context, key string) error {
	saved, ok := s.savedResponses[key]
	if !ok {
		return fmt.Errorf("no saved response %q", key)
	}
	if saved != string(s.tc.GetLastResponseBody()) {
		return fmt.Errorf("response differs from %q\nsaved: %s\ngot: %s", key, saved, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *registrySteps) responseTimeLessThan(ctx context.Context, ms int) error {
	if latency := s.tc.GetLastLatency(); latency >= time.Duration(ms)*time.Millisecond {
		return fmt.Errorf("response took %s, want under %dms", latency, ms)
	}
	return nil
}
