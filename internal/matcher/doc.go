// Package matcher pairs manifest difficulty declarations with archive entries.
//
// File names in manifests rarely match archive paths exactly. Resolve walks an
// ordered table of strategies from strict to loose and returns the first
// entry, in archive order, that the first applicable strategy accepts.
// Declarations that cannot be resolved or recovered become omissions rather
// than errors.
package matcher
