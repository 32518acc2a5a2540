package config

import (
	"os"
	"strings"
)

// StrictConservationChecks enables a post-write re-verification inside the
// allocation transaction: after decrementing batches the allocator re-reads the
// touched rows and aborts if consumed quantity no longer matches the ledger.
//
// Set via env:
// - STRICT_CONSERVATION_CHECKS=true
func StrictConservationChecks() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_CONSERVATION_CHECKS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ConsolidationCacheTTLSeconds controls the redis read-cache for consolidated
// item views. Zero disables the cache.
//
// Set via env:
// - CONSOLIDATION_CACHE_TTL_SECONDS=300
func ConsolidationCacheTTLSeconds() int {
	v := strings.TrimSpace(os.Getenv("CONSOLIDATION_CACHE_TTL_SECONDS"))
	if v == "" {
		return 300
	}
	n := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return 300
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
