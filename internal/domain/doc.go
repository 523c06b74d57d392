// Package domain defines the core types of the AmigaVision catalog.
//
// Entry is the central type: one launchable title, identified by a
// composite id derived from its archive and WHDLoad slave. Entries carry
// the release metadata (year, publisher, hardware, languages) plus the
// fields the indexer attaches when it finds the matching archive on disk.
//
// # Identifiers
//
// WHDLoad titles use "category--installdir--slave" ids (lowercased, with
// the .slave extension stripped); plain disk-image titles use
// "category-notwhdl--archive". A title may point at a preferred version,
// which name resolution chases.
//
// # Design Principles
//
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - Derived fields are computed, never stored
package domain
