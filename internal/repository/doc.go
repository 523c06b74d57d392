// Package repository defines the data access interface for the titles
// catalog. The actual implementation is in the sqlite subpackage.
//
// # Repository Interface
//
// The Repository interface covers single-entry reads and writes, the
// pattern-ladder name resolution the shelf uses, archive attachment and
// pruning for the indexer, and the bulk replace that rebuilds the catalog
// from the canonical CSV.
//
// # SQLite Implementation
//
// The sqlite implementation stores one row per title with WAL mode
// enabled, migrates its schema on startup, and keeps the id as the
// primary key so the indexer's prefix matches stay cheap.
package repository
