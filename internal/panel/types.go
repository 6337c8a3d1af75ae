package panel

// Status is a user's lifecycle state on the panel. OnHold is kept as a
// distinct value; how it is bucketed is decided at each call site.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusOnHold   Status = "on_hold"
)

// User is a user account as reported by the panel. The bot never persists
// these; they are fetched, displayed and selectively written back.
type User struct {
	Username        string              `json:"username"`
	Status          Status              `json:"status"`
	DataLimit       int64               `json:"data_limit"`
	UsedTraffic     int64               `json:"used_traffic"`
	Expire          int64               `json:"expire"` // unix seconds, 0 = never
	Note            string              `json:"note"`
	Inbounds        map[string][]string `json:"inbounds"`
	SubscriptionURL string              `json:"subscription_url"`
}

// Expired reports whether the user's expiry timestamp has passed.
// Independent of status: an active user can be expired.
func (u *User) Expired(now int64) bool {
	return u.Expire > 0 && u.Expire < now
}

// Exhausted reports whether the user has consumed its data limit.
func (u *User) Exhausted() bool {
	return u.DataLimit > 0 && u.UsedTraffic >= u.DataLimit
}

// CreateUserRequest contains params for creating a user on a panel.
type CreateUserRequest struct {
	Username  string
	DataLimit int64 // bytes, 0 = unlimited
	Expire    int64 // unix seconds, 0 = never
	Note      string
}

// Stats is the aggregate user-count breakdown for one panel.
// Expired and Limited are counted independently of Active/Inactive.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Expired  int `json:"expired"`
	Limited  int `json:"limited"`
}
