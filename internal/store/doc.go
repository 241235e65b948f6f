// Package store provides persistence for keygate's credential and session
// data: developers (application owners), applications and their key pairs,
// per-application end users, and user sessions.
//
// The Store interface is the contract consumed by the server; SQLiteStore is
// the production implementation and MockStore backs handler tests. Secret
// keys are stored at rest and returned only by the lookup paths that need
// them (signature verification and initial issuance); list/read endpoints
// compose their responses from the redacted views.
package store
