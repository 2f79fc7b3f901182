// Package allocator owns the depot stall table. Stalls are claimed and
// released exclusively through its API; a conditional claim guarded by the
// current stall status guarantees that at most one vehicle occupies a stall
// at any instant.
package allocator
