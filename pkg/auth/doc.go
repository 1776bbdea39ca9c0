// Package auth provides pluggable authentication for the werkbank API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle the credential type). A configurable
// default decision applies when every authenticator abstains, so a
// development deployment can run open while production requires
// credentials.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// query pipeline. The middleware also injects the caller's tenant into the
// request context for storage scoping.
package auth
