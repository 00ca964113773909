// Package catalog owns the tool surface of the relay.
//
// Ownership boundary:
// - static tool table and param declarations
// - pre-flight call validation
// - local handler registry answering inbound peer requests
package catalog
