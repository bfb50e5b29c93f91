// Package shared groups helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and an xlsx
// fixture builder for emissions workbooks. It must not import domain
// packages so that any package's tests can use it.
package shared
