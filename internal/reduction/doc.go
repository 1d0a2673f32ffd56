// Package reduction persists provisional full-state checkpoints keyed by a
// composition-log position. A reduction lets restore skip replaying history
// older than the reduced record; its absence only increases restore
// latency. Reductions are non-authoritative and freely deletable.
package reduction
