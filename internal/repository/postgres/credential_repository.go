package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// CredentialRepository is the PostgreSQL implementation of domain.CredentialRepository
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) domain.CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByUserID returns the credential for a user or a NotFoundError
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Credential, error) {
	var model CredentialModel
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundErrorf("credential not found for user %d", userID)
		}
		return nil, fmt.Errorf("failed to query credential: %w", result.Error)
	}

	cred := toCredential(model)
	return &cred, nil
}

// All returns every stored credential
func (r *CredentialRepository) All(ctx context.Context) ([]domain.Credential, error) {
	var models []CredentialModel
	result := r.db.WithContext(ctx).Order("user_id").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", result.Error)
	}

	creds := make([]domain.Credential, 0, len(models))
	for _, m := range models {
		creds = append(creds, toCredential(m))
	}
	return creds, nil
}

// Save creates or replaces the credential for cred.UserID
func (r *CredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	model := CredentialModel{
		UserID:       cred.UserID,
		APIID:        cred.APIID,
		APIHash:      cred.APIHash,
		Phone:        cred.Phone,
		SessionToken: cred.SessionToken,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_id", "api_hash", "phone", "session_token", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to save credential: %w", result.Error)
	}

	return nil
}

// UpdateSessionToken persists a refreshed session token for a user
func (r *CredentialRepository) UpdateSessionToken(ctx context.Context, userID int64, token string) error {
	result := r.db.WithContext(ctx).
		Model(&CredentialModel{}).
		Where("user_id = ?", userID).
		Update("session_token", token)
	if result.Error != nil {
		return fmt.Errorf("failed to update session token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NewNotFoundErrorf("credential not found for user %d", userID)
	}

	return nil
}

func toCredential(m CredentialModel) domain.Credential {
	return domain.Credential{
		UserID:       m.UserID,
		APIID:        m.APIID,
		APIHash:      m.APIHash,
		Phone:        m.Phone,
		SessionToken: m.SessionToken,
	}
}
