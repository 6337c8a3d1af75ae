package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marzadmin/internal/models"
)

// PanelRepository handles panel database operations.
type PanelRepository struct {
	db *gorm.DB
}

func NewPanelRepository(db *gorm.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// ByChat returns all panels registered by a chat.
func (r *PanelRepository) ByChat(chatID int64) ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Where("chat_id = ?", chatID).Order("alias").Find(&panels).Error
	return panels, err
}

// ByAlias returns one panel by its case-normalized alias, or nil when no
// such panel exists.
func (r *PanelRepository) ByAlias(chatID int64, alias string) (*models.Panel, error) {
	var panel models.Panel
	err := r.db.Where("chat_id = ? AND alias = ?", chatID, normalizeAlias(alias)).First(&panel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &panel, nil
}

// Save inserts a panel, replacing any existing row with the same (chat, alias).
func (r *PanelRepository) Save(panel *models.Panel) error {
	panel.Alias = normalizeAlias(panel.Alias)
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "alias"}},
		UpdateAll: true,
	}).Create(panel).Error
}

// Delete removes a panel by (chat, alias).
func (r *PanelRepository) Delete(chatID int64, alias string) error {
	return r.db.Where("chat_id = ? AND alias = ?", chatID, normalizeAlias(alias)).
		Delete(&models.Panel{}).Error
}

// All returns every registered panel. Used by the token refresh job.
func (r *PanelRepository) All() ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Find(&panels).Error
	return panels, err
}

// UpdateToken stores a freshly issued bearer token for a panel.
func (r *PanelRepository) UpdateToken(id uint, token string) error {
	return r.db.Model(&models.Panel{}).Where("id = ?", id).
		Update("token", token).Error
}

func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}
