// Package audit keeps a trail of state-changing RPC calls in the
// audit_logs table.
//
// Writes go through a Recorder so a slow disk never delays a response;
// entries are dropped rather than queued without bound.
package audit
