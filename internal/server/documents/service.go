package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

// Service is the remote store as seen by an authenticated caller. Every
// method takes the caller's user id and refuses to touch documents of
// anybody else.
type Service struct {
	db     *sql.DB
	repo   func(dbx.DBTX) Repository
	logger logging.Logger
	newID  func() string
}

func NewService(db *sql.DB, logger logging.Logger) *Service {
	return &Service{
		db:     db,
		repo:   func(tx dbx.DBTX) Repository { return NewPostgresRepository(tx) },
		logger: logger.With("module", "documents"),
		newID:  uuid.NewString,
	}
}

func checkCollection(collection string) error {
	if !slices.Contains(common.Collections, collection) {
		return fmt.Errorf("%w: %q", common.ErrUnknownCollection, collection)
	}
	return nil
}

// owner returns the owner field of fields and checks it names the caller.
func owner(caller string, fields map[string]any) (string, error) {
	userID, ok := fields[common.OwnerField].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: field %q is required", common.ErrorValidation, common.OwnerField)
	}
	if userID != caller {
		return "", fmt.Errorf("%w: document belongs to another user", common.ErrorForbidden)
	}
	return userID, nil
}

func (s *Service) Create(ctx context.Context, caller, collection string, fields map[string]any) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	userID, err := owner(caller, fields)
	if err != nil {
		return "", err
	}

	d := &Document{ID: s.newID(), Collection: collection, UserID: userID, Fields: fields}
	if err := s.repo(s.db).Insert(ctx, d); err != nil {
		s.logger.Error(ctx, "insert failed", "collection", collection, "user_id", userID, "error", err)
		return "", err
	}
	return d.ID, nil
}

// Update replaces the fields of an existing document. The owner of a
// document never changes.
func (s *Service) Update(ctx context.Context, caller, collection, id string, fields map[string]any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	userID, err := owner(caller, fields)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		existing, err := repo.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if existing.UserID != userID {
			return fmt.Errorf("%w: document belongs to another user", common.ErrorForbidden)
		}
		return repo.Update(ctx, &Document{ID: id, Collection: collection, UserID: userID, Fields: fields})
	})
}

func (s *Service) QueryByUser(ctx context.Context, caller, collection, userID string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if userID != caller {
		return nil, fmt.Errorf("%w: cannot query another user", common.ErrorForbidden)
	}
	return s.repo(s.db).ListByUser(ctx, collection, userID)
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Join(common.ErrorInternal, err)
	}
	return nil
}
