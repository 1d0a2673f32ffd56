// Package inspect provides read-only enumeration of composition records
// with optional CEL filtering, for operational tooling. It never mutates
// the store and tolerates records that fail chain validation: inspection
// is exactly for looking at stores that may be broken.
package inspect
