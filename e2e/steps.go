package e2e

import (
	"github.com/cucumber/godog"

	"tckt/e2e/steps/common"
	"tckt/e2e/steps/registry"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	registry.RegisterSteps(ctx, tc)
}
