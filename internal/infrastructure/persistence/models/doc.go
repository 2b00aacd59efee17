// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from the integration domain types so the domain layer
// stays free of ORM tags.
//
// Structure:
//   - connected_account.go: marketplace accounts and their OAuth credentials
//   - reconciled_order.go: one reconciled row per (account, order id)
//   - product_cost.go: per-account unit cost of goods by SKU
package models
