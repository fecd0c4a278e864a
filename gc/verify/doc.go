// Package verify provides invariant checks over a collector and its host heap.
//
// # Checks
//
//   - Registry: live blocks sorted by address never overlap
//   - Accounting: the live-byte counter equals the sum of block sizes
//   - Ownership: each live block is an allocated host cell in the heap segment
//   - HostCells: cell headers tile the committed heap and free cells are coalesced
//   - Orphans: every allocated host cell belongs to a live block
//
// # Usage Example
//
//	if err := verify.AllInvariants(sim, sim.Heap); err != nil {
//	    return err
//	}
package verify
