// Package integration provides end-to-end tests for the ai_task service:
// HTTP API, service dispatch, media resolution through a mock Home
// Assistant, handling entities and persisted preferences.
// This file re-exports types from pkg/testutil.
package integration

import (
	"aitask/pkg/testutil"
)

// Type aliases for the mock Home Assistant server
type MockHAServer = testutil.MockHAServer
type ServiceCall = testutil.ServiceCall

// NewMockHAServer creates a new mock HA server
var NewMockHAServer = testutil.NewMockHAServer

// Helper function aliases
var FilterServiceCalls = testutil.FilterServiceCalls
