package bot

import (
	"fmt"
	"strings"
)

// Action is a callback button's operation, decoded once at the boundary.
type Action string

const (
	ActionMainMenu Action = "main_menu"
	ActionAddPanel Action = "add_panel"

	ActionManageAdmins       Action = "manage_admins"
	ActionAddAdmin           Action = "add_admin"
	ActionRemoveAdmin        Action = "remove_admin"
	ActionConfirmRemoveAdmin Action = "confirm_remove_admin"
	ActionUserInfo           Action = "user_info"
	ActionSetLogChannel      Action = "set_log_channel"

	ActionManagePanels       Action = "manage_panels"
	ActionDeletePanel        Action = "delete_panel"
	ActionConfirmDeletePanel Action = "confirm_delete_panel"
	ActionSelectPanel        Action = "select_panel"
	ActionBackToPanels       Action = "back_to_panels"
	ActionRefreshStats       Action = "refresh_stats"

	ActionSearchUser     Action = "search_user"
	ActionCreateUser     Action = "create_user"
	ActionRandomUsername Action = "random_username"
	ActionSetNoteNone    Action = "set_note_none"

	ActionDeleteUser     Action = "delete_user"
	ActionDisableUser    Action = "disable_user"
	ActionEnableUser     Action = "enable_user"
	ActionSetDataLimit   Action = "set_data_limit"
	ActionSetExpireTime  Action = "set_expire_time"
	ActionManageConfigs  Action = "manage_configs"
	ActionToggleInbound  Action = "toggle_inbound"
	ActionConfirmConfigs Action = "confirm_configs"
	ActionDeleteConfigs  Action = "delete_configs"
	ActionRegenerateLink Action = "regenerate_link"

	ActionPurgeExpired   Action = "purge_expired"
	ActionPurgeExhausted Action = "purge_exhausted"
	ActionConfirmPurge   Action = "confirm_purge"
	ActionCancelPurge    Action = "cancel_purge"
)

// callbackArgc maps each action to its expected argument count.
var callbackArgc = map[Action]int{
	ActionMainMenu:           0,
	ActionAddPanel:           0,
	ActionManageAdmins:       0,
	ActionAddAdmin:           0,
	ActionRemoveAdmin:        0,
	ActionConfirmRemoveAdmin: 1,
	ActionUserInfo:           0,
	ActionSetLogChannel:      0,
	ActionManagePanels:       0,
	ActionDeletePanel:        0,
	ActionConfirmDeletePanel: 1,
	ActionSelectPanel:        1,
	ActionBackToPanels:       0,
	ActionRefreshStats:       0,
	ActionSearchUser:         0,
	ActionCreateUser:         0,
	ActionRandomUsername:     0,
	ActionSetNoteNone:        0,
	ActionDeleteUser:         1,
	ActionDisableUser:        1,
	ActionEnableUser:         1,
	ActionSetDataLimit:       1,
	ActionSetExpireTime:      1,
	ActionManageConfigs:      1,
	ActionToggleInbound:      3, // protocol, tag, username
	ActionConfirmConfigs:     1,
	ActionDeleteConfigs:      1,
	ActionRegenerateLink:     1,
	ActionPurgeExpired:       0,
	ActionPurgeExhausted:     0,
	ActionConfirmPurge:       0,
	ActionCancelPurge:        0,
}

// Callback is one decoded inline-button press.
type Callback struct {
	Action Action
	Args   []string
}

// Arg returns the i-th argument, or "" when out of range.
func (cb Callback) Arg(i int) string {
	if i < 0 || i >= len(cb.Args) {
		return ""
	}
	return cb.Args[i]
}

// ParseCallback decodes colon-delimited callback data into a known action
// with its arguments. Unknown actions and wrong arity are rejected here
// so handlers never see malformed data.
func ParseCallback(data string) (Callback, error) {
	// telebot prefixes data sent through its Btn helpers.
	data = strings.TrimPrefix(data, "\f")
	data = strings.TrimSpace(data)
	if data == "" {
		return Callback{}, fmt.Errorf("empty callback data")
	}

	parts := strings.Split(data, ":")
	action := Action(parts[0])
	argc, ok := callbackArgc[action]
	if !ok {
		return Callback{}, fmt.Errorf("unknown callback action %q", parts[0])
	}

	args := parts[1:]
	if len(args) != argc {
		return Callback{}, fmt.Errorf("callback %q: want %d args, got %d", action, argc, len(args))
	}
	return Callback{Action: action, Args: args}, nil
}

// CallbackData encodes an action and its arguments for a button.
func CallbackData(action Action, args ...string) string {
	if len(args) == 0 {
		return string(action)
	}
	return string(action) + ":" + strings.Join(args, ":")
}
