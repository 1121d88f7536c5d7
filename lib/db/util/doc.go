// Package util provides utility functions for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: Hash functions and seed generation used for shard selection
package util
