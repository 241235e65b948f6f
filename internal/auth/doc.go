// Package auth implements keygate's server-side request authentication.
//
// Three layers are provided as HTTP middleware:
//
//   - Developer bearer auth: HS256 JWTs issued at developer login, used by
//     the application-management endpoints.
//   - Application signature auth: verifies the X-Public-Key/X-Timestamp/
//     X-Signature headers that tenant applications attach to every call,
//     including a freshness window on the timestamp.
//   - Session auth: resolves X-Session-Token to a live user session on
//     user-scoped endpoints.
//
// Authenticated identities propagate to handlers through the request
// context via the WithX/XFromContext helpers.
package auth
