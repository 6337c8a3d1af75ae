package bot

import "sync"

// Step identifies which input the conversation expects next.
type Step string

const (
	StepIdle Step = "idle"

	// add-panel flow
	StepAwaitingPanelAlias    Step = "awaiting_panel_alias"
	StepAwaitingPanelURL      Step = "awaiting_panel_url"
	StepAwaitingAdminUsername Step = "awaiting_admin_username"
	StepAwaitingAdminPassword Step = "awaiting_admin_password"

	// create-user flow
	StepAwaitingCreateUsername Step = "awaiting_create_username"
	StepAwaitingDataLimit      Step = "awaiting_data_limit"
	StepAwaitingExpireTime     Step = "awaiting_expire_time"
	StepAwaitingNote           Step = "awaiting_note"

	// single-step flows
	StepAwaitingNewDataLimit   Step = "awaiting_new_data_limit"
	StepAwaitingNewExpireTime  Step = "awaiting_new_expire_time"
	StepAwaitingSearchUsername Step = "awaiting_search_username"
	StepAwaitingAddAdmin       Step = "awaiting_add_admin"
	StepAwaitingLogChannel     Step = "awaiting_log_channel"
	StepAwaitingUserInfo       Step = "awaiting_user_info"
)

// PurgeKind names a pending batch deletion awaiting confirmation.
type PurgeKind string

const (
	PurgeExpired   PurgeKind = "expired"
	PurgeExhausted PurgeKind = "exhausted"
)

// Scratch accumulates values across the steps of one flow. Typed fields
// instead of a loose key/value bag keep "missing key" bugs out of the
// step handlers.
type Scratch struct {
	// add-panel flow
	PanelAlias    string
	PanelURL      string
	AdminUsername string

	// create-user flow
	Username  string
	DataLimit int64
	Expire    int64
	Days      int

	// user actions
	ExistingUsername  string
	SelectedInbounds  []string
	AvailableInbounds []string

	// pending batch deletion
	PendingPurge PurgeKind
}

// Session is the per-chat conversation state. SelectedPanel survives a
// flow reset so consecutive actions against one panel keep working.
type Session struct {
	Step          Step
	SelectedPanel string
	Scratch       Scratch
	Ephemeral     []int
}

// SessionManager owns all chat sessions. The lock guards only the map;
// a single chat's updates are serialized by the bot transport.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating an idle one if needed.
func (m *SessionManager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		s = &Session{Step: StepIdle}
		m.sessions[chatID] = s
	}
	return s
}

// Step returns the chat's current step.
func (m *SessionManager) Step(chatID int64) Step {
	return m.Get(chatID).Step
}

// SetStep advances the chat to the given step.
func (m *SessionManager) SetStep(chatID int64, step Step) {
	m.Get(chatID).Step = step
}

// Clear ends the current flow: the step returns to idle and the
// scratchpad is wiped. The panel selection and ephemeral set survive.
func (m *SessionManager) Clear(chatID int64) {
	s := m.Get(chatID)
	s.Step = StepIdle
	s.Scratch = Scratch{}
}

// RecordEphemeral appends message IDs to the chat's ephemeral set.
func (m *SessionManager) RecordEphemeral(chatID int64, ids ...int) {
	s := m.Get(chatID)
	s.Ephemeral = append(s.Ephemeral, ids...)
}

// TakeEphemeral returns the chat's ephemeral set and empties it.
func (m *SessionManager) TakeEphemeral(chatID int64) []int {
	s := m.Get(chatID)
	ids := s.Ephemeral
	s.Ephemeral = nil
	return ids
}
