package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselabs/paperbase/internal/models"
)

func TestCreateUserValidation(t *testing.T) {
	db := newTestDB()
	svc := NewUserService(db, newTestStorage(), &testPurger{})

	assert.Error(t, svc.Create(context.Background(), nil))
	assert.Error(t, svc.Create(context.Background(), &models.User{Email: "a@b.c"}))
	assert.Error(t, svc.Create(context.Background(), &models.User{PasswordHash: "hash"}))

	u := &models.User{ID: "u1", Email: "a@b.c", PasswordHash: "hash"}
	require.NoError(t, svc.Create(context.Background(), u))

	// Duplicate email is rejected by the store.
	assert.Error(t, svc.Create(context.Background(), &models.User{ID: "u2", Email: "a@b.c", PasswordHash: "hash"}))

	got, err := svc.GetByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
}

func TestDeleteAccountCascades(t *testing.T) {
	db := newTestDB()
	storage := newTestStorage()
	purger := &testPurger{}
	svc := NewUserService(db, storage, purger)

	require.NoError(t, db.CreateUser(context.Background(), &models.User{ID: "u1", Email: "a@b.c", PasswordHash: "h"}))
	db.addDoc(&models.Document{ID: "d1", UserID: "u1", StoragePath: "u1/d1.pdf", Status: models.StatusProcessed})
	db.addDoc(&models.Document{ID: "d2", UserID: "u1", StoragePath: "u1/d2.pdf", Status: models.StatusFailed})
	db.addDoc(&models.Document{ID: "d3", UserID: "other", StoragePath: "other/d3.pdf", Status: models.StatusProcessed})
	storage.objects["u1/d1.pdf"] = []byte("one")
	storage.objects["u1/d2.pdf"] = []byte("two")
	storage.objects["other/d3.pdf"] = []byte("three")

	require.NoError(t, svc.DeleteAccount(context.Background(), "u1"))

	// The user's objects, segments, documents and row are gone; the other
	// user's data is untouched.
	assert.NotContains(t, storage.objects, "u1/d1.pdf")
	assert.NotContains(t, storage.objects, "u1/d2.pdf")
	assert.Contains(t, storage.objects, "other/d3.pdf")

	assert.ElementsMatch(t, []string{"d1", "d2"}, purger.purged)

	docs, err := db.ListDocumentsByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, docs)
	remaining, err := db.ListDocumentsByUser(context.Background(), "other")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	u, err := db.GetUserByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, u)
}
