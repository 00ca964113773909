// Package relay owns the single-peer command relay core.
//
// Ownership boundary:
// - role arbitration on the rendezvous port (listener vs follower)
// - the one live peer session and last-connection-wins replacement
// - heartbeat liveness and forced session teardown
// - request/response correlation with per-call deadlines
// - frame routing for both call directions
//
// The relay never interprets call payloads; tool semantics belong to the
// responder wired in by the caller.
package relay
