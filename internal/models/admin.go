package models

// Admin is a chat granted admin access to the bot. Owners are configured
// out-of-band via BOT_OWNER_IDS and are not stored here.
type Admin struct {
	ChatID int64 `gorm:"column:chat_id;primaryKey" json:"chat_id"`
}

func (Admin) TableName() string {
	return "admins"
}
