// Package filestore abstracts the file-shaped persistence the process store
// is built on: set/append/get/list/delete keyed by slash-free path
// components.
//
// Three backends share one logical namespace:
//   - FS persists each path as a real file under a root directory. This is
//     the interoperable layout external tooling reads.
//   - Memory holds everything in a map; used by tests and projections.
//   - Pebble stores paths as keys in a Pebble LSM, for single-directory
//     deployments.
//
// Two projections support the test-then-commit flow:
//   - Readonly structurally rejects writes.
//   - Recording buffers writes in an overlay and can Apply them to a real
//     store afterwards.
package filestore
