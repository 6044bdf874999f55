// Package rules implements the rule table that drives portability record
// classification: loading rules from an external tabular source, indexing
// them for candidate selection, matching records against them, and
// bootstrapping draft rules for combinations nobody has mapped yet.
//
// The rule table is maintained by operations staff outside this program.
// Column names (including the legacy "Templete" typo) are part of the
// contract with that file and must not be "fixed" here.
package rules
