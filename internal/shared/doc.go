// Package shared holds code used across the study's packages that belongs
// to no single domain.
//
// The testutil subpackage provides a capturing slog handler and synthetic
// fixtures: ranked universes, trading-day calendars, seeded factor tables
// and return panels generated from known loadings. It is imported only by
// tests.
package shared
