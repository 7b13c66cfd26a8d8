// Package rate is a Redis-backed fixed-window attempt limiter for the
// guessable authentication operations: login and the password-reproof
// enrollment endpoints.
//
// Window semantics: INCR plus a conditional EXPIRE on the first hit of the
// window. Keys are "rl:<scope>:<identifier>", so scopes count
// independently. A successful attempt deletes its counter.
package rate
