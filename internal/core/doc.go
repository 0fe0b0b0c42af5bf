// Package core turns a bronze snapshot into silver tables and a rejection
// ledger.
//
// The package performs no I/O and never logs. The pipeline runner supplies the
// bronze snapshot and writes the result.
//
// # Architecture
//
//   - Normalizer: converts raw bronze scalars into pgtype values, where Valid
//     false means missing. See [Normalize].
//   - Rule engine: each table has an ordered chain of named predicates
//     ([Rule]) applied by [ApplyRules].
//   - Cross-entity validation: child rows are joined to an [Index] of their
//     accepted parents by [JoinRule].
//   - Ledger: every rejected row is recorded once per failing rule in a
//     [Ledger] with a JSON-safe snapshot of the row.
//   - Orchestration: [Transform] checks the bronze contract, then runs the
//     tables in [Plan] order.
//
// # Processing Order
//
//	customers ─> orders ─> payments
//	                │          │
//	                └──────────┴─> delivery
//	products
//
// Orders are validated against accepted customers, payments and delivery
// against accepted orders, and strict delivery also against accepted payments.
// Products stand alone. A rejected parent therefore rejects its children.
// [NewPlan] refuses any order that breaks these dependencies.
//
// # Structural Faults
//
// A missing table or required column is not a data defect. [Transform]
// reports every such fault in a [ContractError] and produces nothing.
// Row-level defects are never reported this way; they go to the ledger.
//
// # Error Handling
//
// Errors are mapped to user-friendly messages using [MapError]:
//
//   - SCH001-SCH003: bronze contract and stage order
//   - DB001-DB005: database errors
//   - RUN001-RUN004: run control
package core
