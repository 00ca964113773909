// Package wire owns the relay frame contract.
//
// Ownership boundary:
// - the five frame kinds and their required fields
// - newline-delimited JSON encode/decode with size caps
// - request id salvage for malformed inbound lines
//
// Call payloads (params/data) are opaque to this package.
package wire
