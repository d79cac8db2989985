package services

import (
	"context"
	"errors"
	"log"

	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

type UserService struct {
	db      core.DbClient
	storage core.ObjectClient
	purger  SegmentPurger
}

func NewUserService(db core.DbClient, storage core.ObjectClient, purger SegmentPurger) *UserService {
	return &UserService{db: db, storage: storage, purger: purger}
}

func (s *UserService) Create(ctx context.Context, u *models.User) error {
	if u == nil || u.Email == "" || u.PasswordHash == "" {
		return errors.New("invalid user payload")
	}
	return s.db.CreateUser(ctx, u)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, email)
}

// DeleteAccount permanently removes a user and all associated data: every
// storage object under the user's prefix, each document's segments and
// vector entries, the document rows, then the user row.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.storage.DeletePrefix(ctx, userID+"/"); err != nil {
		// Storage might already be empty; the DB rows matter more.
		log.Printf("WARN: failed to clear storage for user %s: %v", userID, err)
	}

	docs, err := s.db.ListDocumentsByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range docs {
		if err := s.purger.Purge(ctx, docs[i].ID); err != nil {
			return err
		}
		if err := s.db.DeleteDocument(ctx, docs[i].ID, userID); err != nil {
			return err
		}
	}

	return s.db.DeleteUser(ctx, userID)
}
