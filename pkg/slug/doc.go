// Package slug creates URL-safe slugs for slugged columns.
//
// Make normalizes a source string: ASCII letters and digits pass through,
// common Latin diacritics fold to their ASCII equivalents, and every other
// run of characters collapses to a single separator (default "-").
//
// The package also carries the two helpers the entity layer uses to keep
// generated slugs inside a column's maximum length:
//
//   - TruncateWords drops trailing separator-delimited words until the slug
//     fits, so "on-stock-virtual" truncated to 8 becomes "on-stock" rather
//     than the mid-word "on-stock" prefix cut.
//   - NumberSuffix appends an incrementing numeric suffix for collision
//     resolution, truncating the base when needed so the suffixed slug
//     still fits: NumberSuffix("on-stock", 1, 8) == "on-sto-1".
package slug
