// Package query defines the structured criterion form behind pgmodel's
// dynamic filters, and the string grammar parsed on top of it.
//
// A Criterion is a field path, an operator, an operand, and a negation
// flag. Criteria can be built directly, but most callers write the compact
// key grammar instead: an operator suffix appended to a field name with
// "__", optionally negated with a "not_" prefix on the operator:
//
//	"age__gt"            → age > value
//	"age__not_ge"        → NOT (age >= value)
//	"name__icontains"    → name ILIKE %value%
//	"company__name"      → traversal into the joined/related class
//	"teams__is_empty"    → relationship emptiness test
//	"teams__has"         → membership test against the secondary relation
//
// A key with no recognized operator suffix is an equality test; its value
// may be nil, which the renderer turns into an IS NULL check.
//
// Boolean combinators Or and And accept flat M maps and nested combinator
// results; F builds a single-criterion expression so the same field name
// can appear more than once inside one combinator (impossible in a flat
// map, whose keys are unique).
//
// The package is purely syntactic: it never touches schema metadata or
// SQL. Resolution of paths against relationships and aliases, and SQL
// rendering, happen in the pgmodel root package.
package query
