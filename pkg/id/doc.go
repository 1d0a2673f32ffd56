// Package id generates sortable operation identifiers.
//
// An ID packs a millisecond timestamp and a per-process sequence into 16
// big-endian bytes, so byte order equals generation order. The process
// uses them to correlate the log lines of one operation, such as an event
// append or a truncation run.
//
// The Generator never goes backwards. A regressing clock pins the
// timestamp to the last observed millisecond, and a sequence overflow
// within one millisecond waits that millisecond out.
package id
