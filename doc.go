// Package folio provides the accounting core of a personal portfolio
// tracker. It is designed to be local-first and auditable: the
// append-only transaction log is the single source of truth, and every
// figure the package reports can be recomputed from it.
//
// The core functionalities include:
//   - Ledger Management: recording buys, sells and deposits in an
//     immutable, chronological log, with weighted-average cost basis,
//     realized gains on sale, and algebraic reversal of any entry.
//   - Valuation: pricing liquid holdings through a pluggable price
//     feed and non-liquid assets through a deterministic compound
//     growth estimate, with graceful degradation to stale prices when
//     a feed is unreachable.
//   - Equity History: reconstructing the total portfolio value over
//     time by replaying the log against historical prices.
//   - Interchange: encoding and decoding snapshots in human-readable
//     formats (JSONL, CSV) that survive an export/import round trip.
//
// This package serves as the foundational logic for the `folio`
// command-line tool and the `foliod` API server.
package folio
