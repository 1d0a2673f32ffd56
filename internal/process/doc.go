// Package process holds the live representation of a persistent process:
// the currently running hosted application plus the stores its state
// derives from. All state transitions flow through composition events that
// are applied in memory and appended to the hash-chained log, so restoring
// from the store always reproduces exactly what happened live.
package process
