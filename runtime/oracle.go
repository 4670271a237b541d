// Package runtime implements the per-volume façade the VFS layer and sync
// task are built on: Handle, Reader, and Writer mediate
// every page read and the single commit path that advances a volume's local
// LSN.
package runtime

import "github.com/graftdb/graft/core"

// Oracle is a hint object passed to read-through fetches so a Fetcher can
// make prefetch decisions. The zero value is always a legal argument.
type Oracle struct {
	// Prefetch lists page indices the caller expects to read soon, in
	// addition to the one actually being requested.
	Prefetch []core.PageIdx
}

// DefaultOracle returns the zero-value Oracle.
func DefaultOracle() Oracle {
	return Oracle{}
}
