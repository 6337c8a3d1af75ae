package models

// Panel is a remote Marzban panel registered by an admin chat.
// The (chat_id, alias) pair is unique; aliases are stored lowercased.
type Panel struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ChatID   int64  `gorm:"column:chat_id;uniqueIndex:idx_panels_chat_alias" json:"chat_id"`
	Alias    string `gorm:"column:alias;size:200;uniqueIndex:idx_panels_chat_alias" json:"alias"`
	URL      string `gorm:"column:panel_url;size:2000" json:"panel_url"`
	Token    string `gorm:"column:token;size:4000" json:"token"`
	Username string `gorm:"column:username;size:200" json:"username"`
	Password string `gorm:"column:password;size:200" json:"password"`
}

func (Panel) TableName() string {
	return "panels"
}
