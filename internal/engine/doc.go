// Package engine provides built-in execution engines. KV is a small
// deterministic key-value application engine suitable for demos and for
// operational tooling against stores it produced. Nop accepts anything and
// interprets nothing; it exists so verification can exercise the restore
// path without application semantics.
package engine
