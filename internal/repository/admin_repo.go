package repository

import (
	"errors"

	"gorm.io/gorm"

	"marzadmin/internal/models"
)

// AdminRepository handles bot admin database operations.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Add grants admin access to a chat. Adding an existing admin is a no-op.
func (r *AdminRepository) Add(chatID int64) error {
	return r.db.FirstOrCreate(&models.Admin{}, models.Admin{ChatID: chatID}).Error
}

// Remove revokes admin access from a chat.
func (r *AdminRepository) Remove(chatID int64) error {
	return r.db.Where("chat_id = ?", chatID).Delete(&models.Admin{}).Error
}

// List returns all admin chat IDs.
func (r *AdminRepository) List() ([]int64, error) {
	var admins []models.Admin
	if err := r.db.Find(&admins).Error; err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ChatID)
	}
	return ids, nil
}

// Exists reports whether the chat has been granted admin access.
func (r *AdminRepository) Exists(chatID int64) (bool, error) {
	var admin models.Admin
	err := r.db.Where("chat_id = ?", chatID).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
