package ratelimit

import (
	"strings"
	"time"
)

// resolveRoute picks the budget for a request: exact path+method match
// first, then prefix routes (paths ending in "/", so "/jobs/" covers
// "/jobs/{id}" and its sub-resources), then the global default. Health
// checks are never limited.
func resolveRoute(path, method string, routes []EndpointConfig, defaultLimit int, defaultWindow time.Duration) EndpointConfig {
	if path == "/health" {
		return EndpointConfig{}
	}

	for _, r := range routes {
		if r.Method == method && r.Path == path {
			return r
		}
	}
	for _, r := range routes {
		if r.Method == method && strings.HasSuffix(r.Path, "/") && strings.HasPrefix(path, r.Path) {
			return r
		}
	}

	// Unmatched paths share one default bucket per client+method, so a
	// path scan cannot grow the bucket map without bound.
	return EndpointConfig{Path: "*", Method: method, Limit: defaultLimit, Window: defaultWindow}
}
