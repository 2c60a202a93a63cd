// Package testing provides test doubles for code built on carekit.
//
// # Mocks
//
// The mocks subpackage provides testify-based implementations of the
// interfaces carekit components are wired with:
//   - session.Store (MockSessionStore)
//   - httpclient.Client (MockHTTPClient)
//   - navigation.Navigator (MockNavigator)
//
// # Fixtures
//
// The fixtures subpackage builds canned sessions, backend responses and
// classified errors, and pre-configured mocks for the common cases
// (signed-in store, client that always fails with a given kind).
//
// # Containers
//
// The containers subpackage starts real dependencies (redis) with
// testcontainers for integration tests, gated behind the integration build tag.
//
// # Usage
//
//	import (
//		"github.com/mindhaven/carekit/testing/mocks"
//		"github.com/mindhaven/carekit/testing/fixtures"
//	)
package testing
