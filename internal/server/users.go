// ABOUTME: End-user registration, login, profile, and logout handlers
// ABOUTME: All run behind signed-request auth; sessions are issued here

package server

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/store"
)

type userRegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type userLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userPayload is the profile view returned to applications.
type userPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func userView(u *store.User) userPayload {
	return userPayload{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// sessionPayload is the data returned by register and login.
type sessionPayload struct {
	SessionToken string       `json:"sessionToken"`
	ExpiresAt    string       `json:"expiresAt"`
	User         *userPayload `json:"user,omitempty"`
}

func (s *Server) handleUserRegister(w http.ResponseWriter, r *http.Request) {
	var req userRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	app := auth.MustApplicationFromContext(r.Context())

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := &store.User{
		ApplicationID: app.ID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PasswordHash:  string(hash),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.respondError(w, http.StatusConflict, "User with this email already exists")
			return
		}
		s.logger.Error("creating user", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	session, err := s.issueSession(r, app.ID, user.ID)
	if err != nil {
		s.logger.Error("issuing session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	s.audit(r, "application", app.ID, store.AuditRegisterUser, "user", user.ID, nil)

	view := userView(user)
	s.respond(w, http.StatusOK, sessionPayload{
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt.Format(time.RFC3339),
		User:         &view,
	})
}

func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	var req userLoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	app := auth.MustApplicationFromContext(r.Context())

	user, err := s.store.GetUserByEmail(r.Context(), app.ID, req.Email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	session, err := s.issueSession(r, app.ID, user.ID)
	if err != nil {
		s.logger.Error("issuing session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	s.audit(r, "application", app.ID, store.AuditUserLogin, "session", session.ID, nil)

	// Profile data is intentionally omitted; clients fetch it with the
	// session token via GET /api/users/me.
	s.respond(w, http.StatusOK, sessionPayload{
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt.Format(time.RFC3339),
	})
}

// handleMe returns the profile of the session's user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	user, err := s.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		s.logger.Error("fetching session user", "error", err, "user_id", session.UserID)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	s.respond(w, http.StatusOK, userView(user))
}

type logoutRequest struct {
	AllDevices bool `json:"allDevices"`
}

// handleUserLogout invalidates the presented session, or with
// allDevices set, every session the user holds.
func (s *Server) handleUserLogout(w http.ResponseWriter, r *http.Request) {
	session := auth.MustSessionFromContext(r.Context())

	var req logoutRequest
	_ = decodeBody(r, &req) // empty body means single-session logout

	var err error
	if req.AllDevices {
		err = s.store.DeleteSessionsForUser(r.Context(), session.UserID)
	} else {
		err = s.store.DeleteSession(r.Context(), session.ID)
	}
	if err != nil {
		s.logger.Error("deleting session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}

	app := auth.MustApplicationFromContext(r.Context())
	s.audit(r, "application", app.ID, store.AuditUserLogout, "session", session.ID, nil)

	s.respond(w, http.StatusOK, nil)
}

// issueSession creates and persists a fresh session for a user.
func (s *Server) issueSession(r *http.Request, applicationID, userID string) (*store.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session := &store.Session{
		UserID:        userID,
		ApplicationID: applicationID,
		Token:         token,
		ExpiresAt:     time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		return nil, err
	}
	return session, nil
}
