// Package integration contains the marketplace integration bounded context.
// It defines the values exchanged while reconciling a seller's order history
// with a remote marketplace, and the ports the sync engine consumes.
//
// Key concepts:
//   - ConnectedAccount: a seller's marketplace connection and its bearer credential
//   - RawOrder / RawShipment: explicit partial decodings of marketplace payloads
//   - SyncWindow / DateRangeWindow: the time ranges a run re-fetches
//   - ReconciledOrderRecord: the unit persisted per (account, order id)
//   - SyncProgressEvent / SyncResult: what a run reports while and after running
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
