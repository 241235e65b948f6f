// ABOUTME: Context helpers for propagating authenticated identities to handlers
// ABOUTME: Covers developer IDs, verified applications, and user sessions

package auth

import (
	"context"

	"github.com/keygate/keygate/internal/store"
)

type developerKey struct{}
type applicationKey struct{}
type sessionKey struct{}

// WithDeveloper returns a new context carrying the authenticated developer ID.
func WithDeveloper(ctx context.Context, developerID string) context.Context {
	return context.WithValue(ctx, developerKey{}, developerID)
}

// DeveloperFromContext retrieves the authenticated developer ID, returning
// "" if the request was not developer-authenticated.
func DeveloperFromContext(ctx context.Context) string {
	id, _ := ctx.Value(developerKey{}).(string)
	return id
}

// WithApplication returns a new context carrying the verified application.
func WithApplication(ctx context.Context, app *store.Application) context.Context {
	return context.WithValue(ctx, applicationKey{}, app)
}

// ApplicationFromContext retrieves the verified application, returning nil
// if the request did not pass signature auth.
func ApplicationFromContext(ctx context.Context) *store.Application {
	app, _ := ctx.Value(applicationKey{}).(*store.Application)
	return app
}

// MustApplicationFromContext retrieves the verified application, panicking
// if the middleware did not run. Use only behind AppAuthMiddleware.
func MustApplicationFromContext(ctx context.Context) *store.Application {
	app := ApplicationFromContext(ctx)
	if app == nil {
		panic("auth: application not found in context")
	}
	return app
}

// WithSession returns a new context carrying the resolved user session.
func WithSession(ctx context.Context, session *store.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext retrieves the resolved session, returning nil if the
// request did not carry a valid session token.
func SessionFromContext(ctx context.Context) *store.Session {
	session, _ := ctx.Value(sessionKey{}).(*store.Session)
	return session
}

// MustSessionFromContext retrieves the resolved session, panicking if the
// middleware did not run. Use only behind SessionMiddleware.
func MustSessionFromContext(ctx context.Context) *store.Session {
	session := SessionFromContext(ctx)
	if session == nil {
		panic("auth: session not found in context")
	}
	return session
}
