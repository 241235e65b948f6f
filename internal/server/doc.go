// Package server implements keygate's HTTP API.
//
// # Surfaces
//
// Three groups of endpoints share one mux:
//
//   - Public: GET /health (liveness, unauthenticated).
//   - Signed application endpoints: POST /api/users/register,
//     POST /api/users/login, GET /api/users/me, POST /api/users/logout.
//     These require valid X-Public-Key/X-Timestamp/X-Signature headers;
//     the /me and /logout endpoints additionally require X-Session-Token.
//   - Developer endpoints: POST /api/auth/register, POST /api/auth/login
//     (open), and JWT-protected application management under
//     /api/applications.
//
// Every response uses the envelope {"success":bool,"data":...,"error":...}.
// Application secret keys appear in responses exactly twice in an
// application's life: at creation and at rotation.
package server
