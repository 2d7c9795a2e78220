// Package auth provides the access gate for the sensor's RPC endpoint.
//
// Clients present a static pin in the authorization header. The pin is
// configured in plaintext or, preferably, as an Argon2id PHC hash
// (OWASP 2025 parameters) generated with `sensorctl hash-pin`.
// Comparisons are constant-time.
package auth
