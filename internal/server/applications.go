// ABOUTME: Application management handlers with one-time secret disclosure
// ABOUTME: Secret keys are returned only from create and rotate-secret

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/store"
)

type applicationRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// applicationPayload is the redacted application view. SecretKey is set
// only when key material was just issued.
type applicationPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func applicationView(app *store.Application, includeSecret bool) applicationPayload {
	p := applicationPayload{
		ID:        app.ID,
		Name:      app.Name,
		Domain:    app.Domain,
		PublicKey: app.PublicKey,
		CreatedAt: app.CreatedAt.Format(time.RFC3339),
		UpdatedAt: app.UpdatedAt.Format(time.RFC3339),
	}
	if includeSecret {
		p.SecretKey = app.SecretKey
	}
	return p
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "Application name is required")
		return
	}

	developerID := auth.DeveloperFromContext(r.Context())

	publicKey, err := generateKey("pk_")
	if err != nil {
		s.logger.Error("generating public key", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate keys")
		return
	}
	secretKey, err := generateKey("sk_")
	if err != nil {
		s.logger.Error("generating secret key", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate keys")
		return
	}

	app := &store.Application{
		DeveloperID: developerID,
		Name:        req.Name,
		Domain:      req.Domain,
		PublicKey:   publicKey,
		SecretKey:   secretKey,
	}

	if err := s.store.CreateApplication(r.Context(), app); err != nil {
		s.logger.Error("creating application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to create application")
		return
	}

	s.audit(r, "developer", developerID, store.AuditCreateApplication, "application", app.ID, map[string]any{
		"name": app.Name,
	})

	// Only disclosure of the secret key besides rotation.
	s.respond(w, http.StatusOK, applicationView(app, true))
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	developerID := auth.DeveloperFromContext(r.Context())

	apps, err := s.store.ListApplications(r.Context(), developerID)
	if err != nil {
		s.logger.Error("listing applications", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch applications")
		return
	}

	views := make([]applicationPayload, 0, len(apps))
	for _, app := range apps {
		views = append(views, applicationView(app, false))
	}

	s.respond(w, http.StatusOK, map[string]any{
		"applications": views,
		"count":        len(views),
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	developerID := auth.DeveloperFromContext(r.Context())
	appID := r.PathValue("id")

	app, err := s.store.GetApplication(r.Context(), appID, developerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Application not found")
			return
		}
		s.logger.Error("fetching application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch application")
		return
	}

	s.respond(w, http.StatusOK, applicationView(app, false))
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	developerID := auth.DeveloperFromContext(r.Context())
	appID := r.PathValue("id")

	app := &store.Application{
		ID:          appID,
		DeveloperID: developerID,
		Name:        req.Name,
		Domain:      req.Domain,
	}

	if err := s.store.UpdateApplication(r.Context(), app); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Application not found")
			return
		}
		s.logger.Error("updating application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to update application")
		return
	}

	s.audit(r, "developer", developerID, store.AuditUpdateApplication, "application", appID, nil)

	updated, err := s.store.GetApplication(r.Context(), appID, developerID)
	if err != nil {
		s.logger.Error("reloading application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch application")
		return
	}
	s.respond(w, http.StatusOK, applicationView(updated, false))
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	developerID := auth.DeveloperFromContext(r.Context())
	appID := r.PathValue("id")

	if err := s.store.DeleteApplication(r.Context(), appID, developerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Application not found")
			return
		}
		s.logger.Error("deleting application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete application")
		return
	}

	s.audit(r, "developer", developerID, store.AuditDeleteApplication, "application", appID, nil)
	s.respond(w, http.StatusOK, nil)
}

// handleRotateSecret issues a fresh secret key. The old key stops verifying
// immediately; the new key is disclosed in this response only.
func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	developerID := auth.DeveloperFromContext(r.Context())
	appID := r.PathValue("id")

	secretKey, err := generateKey("sk_")
	if err != nil {
		s.logger.Error("generating secret key", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate keys")
		return
	}

	if err := s.store.RotateApplicationSecret(r.Context(), appID, developerID, secretKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Application not found")
			return
		}
		s.logger.Error("rotating secret", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to rotate secret")
		return
	}

	s.audit(r, "developer", developerID, store.AuditRotateSecret, "application", appID, nil)

	app, err := s.store.GetApplication(r.Context(), appID, developerID)
	if err != nil {
		s.logger.Error("reloading application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch application")
		return
	}
	s.respond(w, http.StatusOK, applicationView(app, true))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	developerID := auth.DeveloperFromContext(r.Context())
	appID := r.PathValue("id")

	// Scope check: the application must belong to this developer.
	if _, err := s.store.GetApplication(r.Context(), appID, developerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Application not found")
			return
		}
		s.logger.Error("fetching application", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch application")
		return
	}

	users, err := s.store.ListUsers(r.Context(), appID)
	if err != nil {
		s.logger.Error("listing users", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	views := make([]userPayload, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	s.respond(w, http.StatusOK, map[string]any{
		"users": views,
		"count": len(views),
	})
}

// audit appends a best-effort audit entry; failures are logged, not surfaced.
func (s *Server) audit(r *http.Request, actorType, actorID string, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	err := s.store.AppendAuditLog(r.Context(), &store.AuditEntry{
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
