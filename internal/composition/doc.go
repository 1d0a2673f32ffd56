// Package composition implements the hash-chained, append-only composition
// log: the single source of truth for the hosted application's state.
//
// # Records
//
// Each record is one JSON line carrying the parent record's hash and
// exactly one tagged event variant. A record's identity is the SHA-256 of
// its exact line bytes, so every record commits to its full history and
// chain validity is checkable by pure value comparison.
//
// # Segments
//
// Records append to day-named segment files (UTC). A wall-clock segment
// name is only adopted when it sorts after every existing segment, so
// lexicographic segment order always equals chain order and history never
// needs rewriting when clock-derived names arrive out of order.
package composition
