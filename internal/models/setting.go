package models

// Setting is a singleton row holding bot-wide switches.
type Setting struct {
	ID         uint  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LogChannel int64 `gorm:"column:log_channel" json:"log_channel"`
}

func (Setting) TableName() string {
	return "settings"
}
