// Package reconciliation contains the pure financial rules applied to every
// synchronized marketplace order.
//
// Key concepts:
//   - Amount / ParseAmount: coercion of heterogeneous payload values into decimals
//   - AdjustFreight: the freight rule table resolving an authoritative freight adjustment
//   - ResolveFreight: picks the final freight cost among conflicting payload fields
//   - Margin: contribution margin, or a flagged net-revenue proxy when cost data is missing
//
// Nothing in this package performs I/O. Every function is deterministic so the
// same inputs always yield the same outputs, which lets a sync run be replayed.
package reconciliation
