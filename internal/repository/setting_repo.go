package repository

import (
	"errors"

	"gorm.io/gorm"

	"marzadmin/internal/models"
)

// SettingRepository handles the singleton settings row.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// LogChannel returns the configured activity log channel, or 0 when unset.
func (r *SettingRepository) LogChannel() (int64, error) {
	var setting models.Setting
	err := r.db.First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return setting.LogChannel, nil
}

// SetLogChannel stores the activity log channel on the singleton row.
func (r *SettingRepository) SetLogChannel(channelID int64) error {
	var setting models.Setting
	err := r.db.First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&models.Setting{LogChannel: channelID}).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&setting).Update("log_channel", channelID).Error
}
