// Package tudump rewrites a compilation database to a chosen C++ standard
// and dumps the AST of every translation unit it lists.
package tudump
