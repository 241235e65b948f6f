// ABOUTME: Tests for application credential store methods
// ABOUTME: Covers CRUD, developer scoping, secret rotation, and cascades

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDeveloper inserts a developer and returns its ID.
func createTestDeveloper(t *testing.T, s Store, email string) string {
	t.Helper()
	dev := &Developer{
		FirstName:    "Test",
		LastName:     "Developer",
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
	}
	require.NoError(t, s.CreateDeveloper(context.Background(), dev))
	return dev.ID
}

// createTestApplication inserts an application and returns it.
func createTestApplication(t *testing.T, s Store, developerID, publicKey string) *Application {
	t.Helper()
	app := &Application{
		DeveloperID: developerID,
		Name:        "Test App",
		Domain:      "app.example.com",
		PublicKey:   publicKey,
		SecretKey:   "sk_" + publicKey,
	}
	require.NoError(t, s.CreateApplication(context.Background(), app))
	return app
}

func TestStore_ApplicationLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	app := createTestApplication(t, store, devID, "pk_abc123")

	got, err := store.GetApplication(ctx, app.ID, devID)
	require.NoError(t, err)
	assert.Equal(t, "Test App", got.Name)
	assert.Equal(t, "sk_pk_abc123", got.SecretKey)

	// Scoped lookup: another developer can't see it
	otherID := createTestDeveloper(t, store, "other@example.com")
	_, err = store.GetApplication(ctx, app.ID, otherID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Update name/domain
	got.Name = "Renamed"
	got.Domain = "new.example.com"
	require.NoError(t, store.UpdateApplication(ctx, got))
	updated, err := store.GetApplication(ctx, app.ID, devID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "new.example.com", updated.Domain)

	// Delete
	require.NoError(t, store.DeleteApplication(ctx, app.ID, devID))
	_, err = store.GetApplication(ctx, app.ID, devID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetApplicationByPublicKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	app := createTestApplication(t, store, devID, "pk_lookup")

	got, err := store.GetApplicationByPublicKey(ctx, "pk_lookup")
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
	// Verification path needs the secret
	assert.Equal(t, app.SecretKey, got.SecretKey)

	_, err = store.GetApplicationByPublicKey(ctx, "pk_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DuplicatePublicKeyRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	createTestApplication(t, store, devID, "pk_same")

	dup := &Application{
		DeveloperID: devID,
		Name:        "Dup",
		Domain:      "dup.example.com",
		PublicKey:   "pk_same",
		SecretKey:   "sk_other",
	}
	assert.Error(t, store.CreateApplication(ctx, dup))
}

func TestStore_RotateApplicationSecret(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	app := createTestApplication(t, store, devID, "pk_rotate")

	require.NoError(t, store.RotateApplicationSecret(ctx, app.ID, devID, "sk_new"))

	got, err := store.GetApplicationByPublicKey(ctx, "pk_rotate")
	require.NoError(t, err)
	assert.Equal(t, "sk_new", got.SecretKey)

	// Wrong developer can't rotate
	err = store.RotateApplicationSecret(ctx, app.ID, "not-the-owner", "sk_evil")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListApplications(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	createTestApplication(t, store, devID, "pk_one")
	createTestApplication(t, store, devID, "pk_two")

	otherID := createTestDeveloper(t, store, "other@example.com")
	createTestApplication(t, store, otherID, "pk_three")

	apps, err := store.ListApplications(ctx, devID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestStore_DeleteApplicationCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	devID := createTestDeveloper(t, store, "owner@example.com")
	app := createTestApplication(t, store, devID, "pk_cascade")

	user := &User{
		ApplicationID: app.ID,
		Email:         "user@example.com",
		FirstName:     "End",
		LastName:      "User",
		PasswordHash:  "h",
	}
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.DeleteApplication(ctx, app.ID, devID))

	_, err := store.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RedactedClearsSecret(t *testing.T) {
	app := &Application{PublicKey: "pk_x", SecretKey: "sk_x"}
	red := app.Redacted()
	assert.Empty(t, red.SecretKey)
	assert.Equal(t, "sk_x", app.SecretKey)
}
