package config

import (
	"os"
	"strings"
)

// ReconcileLedgerScope selects how the ledger manager finds the previous
// reconciliation of a line.
//
// Set via env:
// - RECONCILE_LEDGER_SCOPE=product    (default) keyed by conference + product name
// - RECONCILE_LEDGER_SCOPE=conference legacy: any ledger record of the same conference
func ReconcileLedgerScope() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECONCILE_LEDGER_SCOPE")))
	if v == "conference" {
		return "conference"
	}
	return "product"
}

// ReconcileCategoryWorkers bounds how many categories are applied in parallel.
//
// Set via env:
// - RECONCILE_CATEGORY_WORKERS=3
func ReconcileCategoryWorkers() int {
	n := IntFromEnv("RECONCILE_CATEGORY_WORKERS", 3)
	if n < 1 {
		return 1
	}
	return n
}

// StoreId identifies the store this process reconciles (used for locks, cached reports and events).
func StoreId() string {
	v := strings.TrimSpace(os.Getenv("STORE_ID"))
	if v == "" {
		return "default"
	}
	return v
}

func SkipMigrations() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
