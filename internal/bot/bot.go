package bot

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"marzadmin/internal/config"
	"marzadmin/internal/models"
	"marzadmin/internal/panel"
)

// PanelStore persists registered panels. Implemented by repository.PanelRepository.
type PanelStore interface {
	ByChat(chatID int64) ([]models.Panel, error)
	ByAlias(chatID int64, alias string) (*models.Panel, error)
	Save(panel *models.Panel) error
	Delete(chatID int64, alias string) error
}

// AdminStore persists bot admin grants. Implemented by repository.AdminRepository.
type AdminStore interface {
	Add(chatID int64) error
	Remove(chatID int64) error
	List() ([]int64, error)
	Exists(chatID int64) (bool, error)
}

// SettingStore persists bot-wide settings. Implemented by repository.SettingRepository.
type SettingStore interface {
	LogChannel() (int64, error)
	SetLogChannel(channelID int64) error
}

// Stores bundles everything the handlers persist to.
type Stores struct {
	Panels   PanelStore
	Admins   AdminStore
	Settings SettingStore
}

// Bot wraps the telebot instance and all conversation handlers.
type Bot struct {
	tb         *tele.Bot
	webhook    *tele.Webhook
	useWebhook bool
	cfg        *config.Config
	logger     *zap.Logger
	sessions   *SessionManager
	msgr       Messenger
	panels     PanelStore
	admins     AdminStore
	settings   SettingStore
	agg        *panel.Aggregator
}

// New creates and configures a new Bot instance.
func New(cfg *config.Config, stores *Stores, agg *panel.Aggregator, logger *zap.Logger) (*Bot, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Bot.UpdateMode))
	if mode == "" {
		mode = "auto"
	}

	useWebhook := true
	switch mode {
	case "polling":
		useWebhook = false
	case "webhook":
		useWebhook = true
	default: // auto
		useWebhook = strings.TrimSpace(cfg.Bot.WebhookURL) != ""
	}

	var poller tele.Poller
	var webhook *tele.Webhook
	if useWebhook {
		if strings.TrimSpace(cfg.Bot.WebhookURL) == "" {
			return nil, fmt.Errorf("BOT_WEBHOOK_URL is required when BOT_UPDATE_MODE=webhook")
		}
		webhook = &tele.Webhook{
			Listen:   "", // mounted on Echo instead of telebot's own server
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
		poller = webhook
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	b := &Bot{
		tb:         tb,
		webhook:    webhook,
		useWebhook: useWebhook,
		cfg:        cfg,
		logger:     logger,
		sessions:   NewSessionManager(),
		msgr:       NewTelebotMessenger(tb),
		panels:     stores.Panels,
		admins:     stores.Admins,
		settings:   stores.Settings,
		agg:        agg,
	}

	b.registerHandlers()

	return b, nil
}

// WebhookHandler returns the webhook handler for mounting on Echo.
// Returns nil when running in long-polling mode.
func (b *Bot) WebhookHandler() http.Handler {
	if b.webhook == nil {
		return nil
	}
	return b.webhook
}

// Start begins polling/webhook processing.
func (b *Bot) Start() {
	if b.useWebhook {
		b.logger.Info("Starting Telegram bot",
			zap.String("mode", "webhook"), zap.String("webhook_url", b.cfg.Bot.WebhookURL))
	} else {
		// Long polling requires webhook to be removed first.
		if err := b.tb.RemoveWebhook(true); err != nil {
			b.logger.Warn("Failed to remove webhook before long polling", zap.Error(err))
		}
		b.logger.Info("Starting Telegram bot", zap.String("mode", "polling"))
	}
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle(tele.OnText, b.onText)
	b.tb.Handle(tele.OnCallback, b.onCallback)
}

// ── access control ────────────────────────────────────────────────────

func (b *Bot) isOwner(chatID int64) bool {
	return b.cfg.Bot.IsOwner(chatID)
}

func (b *Bot) isAdmin(chatID int64) bool {
	if b.isOwner(chatID) {
		return true
	}
	ok, err := b.admins.Exists(chatID)
	if err != nil {
		b.logger.Error("admin lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}
	return ok
}

// ── telebot entry points ──────────────────────────────────────────────

func (b *Bot) onStart(c tele.Context) error {
	chatID := c.Chat().ID
	b.sessions.RecordEphemeral(chatID, c.Message().ID)
	return b.handleStart(chatID)
}

func (b *Bot) onText(c tele.Context) error {
	chatID := c.Chat().ID
	// The admin's own input is ephemeral too; record it so the next
	// render sweeps it away with the previous prompt.
	b.sessions.RecordEphemeral(chatID, c.Message().ID)
	return b.handleText(chatID, c.Message().Text)
}

func (b *Bot) onCallback(c tele.Context) error {
	chatID := c.Chat().ID
	defer func() { _ = c.Respond() }()

	cb, err := ParseCallback(c.Callback().Data)
	if err != nil {
		b.logger.Debug("ignoring malformed callback",
			zap.Int64("chat_id", chatID), zap.String("data", c.Callback().Data), zap.Error(err))
		return nil
	}
	return b.handleCallback(chatID, cb)
}

// handleStart renders the entry menu.
func (b *Bot) handleStart(chatID int64) error {
	if !b.isAdmin(chatID) {
		b.cleanup(chatID)
		return b.say(chatID, "🚫 شما اجازه استفاده از این ربات را ندارید.", nil)
	}

	b.sessions.Clear(chatID)
	b.cleanup(chatID)

	panels, err := b.panels.ByChat(chatID)
	if err != nil {
		b.logger.Error("panel list failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.say(chatID, msgGenericError, nil)
	}

	welcome := "🎉 به ربات مدیریت پنل خوش آمدید"
	if len(panels) > 0 {
		return b.say(chatID, welcome, mainMenu(b.isOwner(chatID)))
	}
	return b.say(chatID, welcome, welcomeMenu(b.isOwner(chatID)))
}

// handleText routes free text to the current step's handler.
func (b *Bot) handleText(chatID int64, text string) error {
	if !b.isAdmin(chatID) {
		b.cleanup(chatID)
		return b.say(chatID, "🚫 شما اجازه استفاده از این ربات را ندارید.", nil)
	}

	b.cleanup(chatID)
	text = strings.TrimSpace(text)

	switch b.sessions.Step(chatID) {
	case StepAwaitingPanelAlias:
		return b.stepPanelAlias(chatID, text)
	case StepAwaitingPanelURL:
		return b.stepPanelURL(chatID, text)
	case StepAwaitingAdminUsername:
		return b.stepAdminUsername(chatID, text)
	case StepAwaitingAdminPassword:
		return b.stepAdminPassword(chatID, text)
	case StepAwaitingCreateUsername:
		return b.stepCreateUsername(chatID, text)
	case StepAwaitingDataLimit:
		return b.stepDataLimit(chatID, text)
	case StepAwaitingExpireTime:
		return b.stepExpireTime(chatID, text)
	case StepAwaitingNote:
		return b.stepNote(chatID, text)
	case StepAwaitingNewDataLimit:
		return b.stepNewDataLimit(chatID, text)
	case StepAwaitingNewExpireTime:
		return b.stepNewExpireTime(chatID, text)
	case StepAwaitingSearchUsername:
		return b.stepSearchUsername(chatID, text)
	case StepAwaitingAddAdmin:
		return b.stepAddAdmin(chatID, text)
	case StepAwaitingLogChannel:
		return b.stepLogChannel(chatID, text)
	case StepAwaitingUserInfo:
		return b.stepUserInfo(chatID, text)
	default:
		return b.handleStart(chatID)
	}
}

// handleCallback dispatches one decoded button press.
func (b *Bot) handleCallback(chatID int64, cb Callback) error {
	if !b.isAdmin(chatID) {
		return nil
	}

	b.cleanup(chatID)

	switch cb.Action {
	case ActionMainMenu:
		b.sessions.Clear(chatID)
		return b.say(chatID, "🏠 به منوی اصلی بازگشتید:", mainMenu(b.isOwner(chatID)))

	case ActionAddPanel:
		b.sessions.SetStep(chatID, StepAwaitingPanelAlias)
		return b.say(chatID, "📝 لطفاً یک نام مستعار برای پنل وارد کنید:", panelLoginMenu())

	// admin management (owner only)
	case ActionManageAdmins:
		return b.showAdminManagement(chatID)
	case ActionAddAdmin:
		return b.promptAddAdmin(chatID)
	case ActionRemoveAdmin:
		return b.showRemoveAdmin(chatID)
	case ActionConfirmRemoveAdmin:
		return b.removeAdmin(chatID, cb.Arg(0))
	case ActionUserInfo:
		return b.promptUserInfo(chatID)
	case ActionSetLogChannel:
		return b.promptLogChannel(chatID)

	// panel management
	case ActionManagePanels:
		return b.showPanelSelection(chatID)
	case ActionDeletePanel:
		return b.showDeletePanel(chatID)
	case ActionConfirmDeletePanel:
		return b.deletePanel(chatID, cb.Arg(0))
	case ActionSelectPanel:
		return b.selectPanel(chatID, cb.Arg(0))
	case ActionBackToPanels:
		return b.showPanelSelection(chatID)
	case ActionRefreshStats:
		return b.refreshStats(chatID)

	// user flows
	case ActionSearchUser:
		b.sessions.SetStep(chatID, StepAwaitingSearchUsername)
		return b.say(chatID, "🔍 نام کاربری را وارد کنید:", nil)
	case ActionCreateUser:
		b.sessions.SetStep(chatID, StepAwaitingCreateUsername)
		return b.say(chatID, "📝 نام کاربری را وارد کنید:", createUsernameMenu())
	case ActionRandomUsername:
		return b.randomUsername(chatID)
	case ActionSetNoteNone:
		return b.finishCreateUser(chatID, "")

	// user actions
	case ActionDeleteUser:
		return b.deleteUser(chatID, cb.Arg(0))
	case ActionDisableUser:
		return b.setUserStatus(chatID, cb.Arg(0), panel.StatusDisabled)
	case ActionEnableUser:
		return b.setUserStatus(chatID, cb.Arg(0), panel.StatusActive)
	case ActionSetDataLimit:
		return b.promptNewDataLimit(chatID, cb.Arg(0))
	case ActionSetExpireTime:
		return b.promptNewExpireTime(chatID, cb.Arg(0))
	case ActionManageConfigs:
		return b.manageConfigs(chatID, cb.Arg(0))
	case ActionToggleInbound:
		return b.toggleInbound(chatID, cb.Arg(0)+":"+cb.Arg(1), cb.Arg(2))
	case ActionConfirmConfigs:
		return b.confirmConfigs(chatID, cb.Arg(0))
	case ActionDeleteConfigs:
		return b.deleteAllConfigs(chatID, cb.Arg(0))
	case ActionRegenerateLink:
		return b.regenerateLink(chatID, cb.Arg(0))

	// batch deletion
	case ActionPurgeExpired:
		return b.promptPurge(chatID, PurgeExpired)
	case ActionPurgeExhausted:
		return b.promptPurge(chatID, PurgeExhausted)
	case ActionConfirmPurge:
		return b.confirmPurge(chatID)
	case ActionCancelPurge:
		return b.cancelPurge(chatID)

	default:
		b.logger.Debug("unhandled callback action",
			zap.Int64("chat_id", chatID), zap.String("action", string(cb.Action)))
		return nil
	}
}
