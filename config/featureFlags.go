package config

import (
	"os"
	"strings"
)

// StrictOrderImmutability blocks edits on purchase orders after they are
// Confirmed; they must be cancelled and recreated instead.
//
// Set via env:
// - STRICT_ORDER_IMMUTABLE=true
func StrictOrderImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_ORDER_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// CatalogCacheDisabled turns off the Redis supplier-catalog cache. Reads go
// straight to MySQL. Useful when chasing stale-cache reports in production.
//
// Set via env:
// - CATALOG_CACHE_DISABLED=true
func CatalogCacheDisabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CATALOG_CACHE_DISABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
