// ABOUTME: Developer account registration and login handlers
// ABOUTME: Issues HS256 JWTs for the application-management endpoints

package server

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/keygate/keygate/internal/store"
)

// dummyHash keeps login timing constant when the email is unknown.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type developerRegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type developerLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type developerAuthResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleDeveloperRegister(w http.ResponseWriter, r *http.Request) {
	var req developerRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	dev := &store.Developer{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := s.store.CreateDeveloper(r.Context(), dev); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.respondError(w, http.StatusConflict, "Email already registered")
			return
		}
		s.logger.Error("creating developer", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := s.verifier.Generate(dev.ID, s.tokenTTL)
	if err != nil {
		s.logger.Error("generating developer token", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	s.respond(w, http.StatusOK, developerAuthResponse{Token: token})
}

func (s *Server) handleDeveloperLogin(w http.ResponseWriter, r *http.Request) {
	var req developerLoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	dev, err := s.store.GetDeveloperByEmail(r.Context(), req.Email)
	if err != nil {
		// Dummy comparison to keep timing constant for unknown emails
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(dev.PasswordHash), []byte(req.Password)); err != nil {
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.verifier.Generate(dev.ID, s.tokenTTL)
	if err != nil {
		s.logger.Error("generating developer token", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	s.respond(w, http.StatusOK, developerAuthResponse{Token: token})
}
