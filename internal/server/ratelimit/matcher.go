package ratelimit

import "strings"

// unlimitedPaths are never rate limited regardless of method.
var unlimitedPaths = map[string]bool{
	"/health": true,
}

// MatchEndpoint returns the tier for a request, or nil when none applies.
// Exact path matches win over prefix matches; a configured path ending in "/"
// matches every path below it (e.g. "/api/progress/" matches "/api/progress/{id}").
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if unlimitedPaths[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method || !strings.HasSuffix(c.Path, "/") || !strings.HasPrefix(path, c.Path) {
			continue
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}
