package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"marzadmin/internal/models"
	"marzadmin/internal/panel"
)

const (
	msgGenericError = "⚠️ خطایی رخ داد. لطفاً دوباره تلاش کنید."
	minUsernameLen  = 3
)

// cutInbound splits a "protocol:tag" inbound identifier.
func cutInbound(inbound string) (protocol, tag string, ok bool) {
	return strings.Cut(inbound, ":")
}

// reqCtx bounds one panel API call.
func (b *Bot) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.cfg.Panel.RequestTimeout)
}

// ── add-panel flow ────────────────────────────────────────────────────

func (b *Bot) stepPanelAlias(chatID int64, text string) error {
	if text == "" {
		return b.say(chatID, "⚠️ نام مستعار نمی‌تواند خالی باشد. دوباره وارد کنید:", panelLoginMenu())
	}
	s := b.sessions.Get(chatID)
	s.Scratch.PanelAlias = text
	s.Step = StepAwaitingPanelURL
	return b.say(chatID, "🌐 آدرس پنل را وارد کنید (مثال: https://panel.example.com):", panelLoginMenu())
}

func (b *Bot) stepPanelURL(chatID int64, text string) error {
	if !ValidatePanelURL(text) {
		return b.say(chatID, "⚠️ آدرس نامعتبر است. آدرس باید با http یا https شروع شود و بدون مسیر باشد:", panelLoginMenu())
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := panel.CheckAvailability(ctx, text, b.cfg.Panel.RequestTimeout); err != nil {
		b.logger.Warn("panel availability check failed",
			zap.Int64("chat_id", chatID), zap.String("url", text), zap.Error(err))
		return b.say(chatID, "⚠️ پنل در دسترس نیست. آدرس را بررسی و دوباره وارد کنید:", panelLoginMenu())
	}

	s := b.sessions.Get(chatID)
	s.Scratch.PanelURL = strings.TrimRight(text, "/")
	s.Step = StepAwaitingAdminUsername
	return b.say(chatID, "👤 نام کاربری ادمین پنل را وارد کنید:", panelLoginMenu())
}

func (b *Bot) stepAdminUsername(chatID int64, text string) error {
	if text == "" {
		return b.say(chatID, "⚠️ نام کاربری نمی‌تواند خالی باشد. دوباره وارد کنید:", panelLoginMenu())
	}
	s := b.sessions.Get(chatID)
	s.Scratch.AdminUsername = text
	s.Step = StepAwaitingAdminPassword
	return b.say(chatID, "🔑 رمز عبور ادمین پنل را وارد کنید:", panelLoginMenu())
}

func (b *Bot) stepAdminPassword(chatID int64, text string) error {
	s := b.sessions.Get(chatID)
	alias, url, username := s.Scratch.PanelAlias, s.Scratch.PanelURL, s.Scratch.AdminUsername

	ctx, cancel := b.reqCtx()
	defer cancel()
	token, err := panel.Authenticate(ctx, url, username, text, b.cfg.Panel.RequestTimeout)
	if err != nil {
		b.logger.Warn("panel authentication failed",
			zap.Int64("chat_id", chatID), zap.String("url", url), zap.Error(err))
		s.Step = StepAwaitingAdminUsername
		return b.say(chatID, "⚠️ ورود به پنل ناموفق بود. نام کاربری را دوباره وارد کنید:", panelLoginMenu())
	}

	p := &models.Panel{
		ChatID:   chatID,
		Alias:    alias,
		URL:      url,
		Token:    token,
		Username: username,
		Password: text,
	}
	if err := b.panels.Save(p); err != nil {
		b.logger.Error("panel save failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, msgGenericError, mainMenu(b.isOwner(chatID)))
	}

	b.sessions.Clear(chatID)
	b.logActivity(fmt.Sprintf("➕ پنل «%s» توسط %d افزوده شد", alias, chatID))
	return b.say(chatID, fmt.Sprintf("✅ پنل «%s» با موفقیت افزوده شد.", alias), mainMenu(b.isOwner(chatID)))
}

// ── create-user flow ──────────────────────────────────────────────────

func (b *Bot) stepCreateUsername(chatID int64, text string) error {
	if len(text) < minUsernameLen {
		return b.say(chatID, "⚠️ نام کاربری باید حداقل ۳ کاراکتر باشد. دوباره وارد کنید:", createUsernameMenu())
	}
	s := b.sessions.Get(chatID)
	s.Scratch.Username = text
	s.Step = StepAwaitingDataLimit
	return b.say(chatID, "📊 حجم مصرفی را به گیگابایت وارد کنید (۰ = نامحدود):", nil)
}

func (b *Bot) stepDataLimit(chatID int64, text string) error {
	gb, err := ParseQuotaGB(text)
	if err != nil {
		return b.say(chatID, "⚠️ مقدار نامعتبر است. یک عدد غیرمنفی وارد کنید:", nil)
	}
	s := b.sessions.Get(chatID)
	s.Scratch.DataLimit = GigabytesToBytes(gb)
	s.Step = StepAwaitingExpireTime
	return b.say(chatID, "⏰ مدت اعتبار را به روز وارد کنید (۰ = بدون انقضا):", nil)
}

func (b *Bot) stepExpireTime(chatID int64, text string) error {
	days, err := ParseDays(text)
	if err != nil {
		return b.say(chatID, "⚠️ مقدار نامعتبر است. یک عدد صحیح غیرمنفی وارد کنید:", nil)
	}
	s := b.sessions.Get(chatID)
	s.Scratch.Days = days
	s.Scratch.Expire = ExpireFromDays(days, time.Now())
	s.Step = StepAwaitingNote
	return b.say(chatID, "📝 یادداشت کاربر را وارد کنید:", noteMenu())
}

func (b *Bot) stepNote(chatID int64, text string) error {
	return b.finishCreateUser(chatID, text)
}

// ── user edit steps ───────────────────────────────────────────────────

func (b *Bot) stepNewDataLimit(chatID int64, text string) error {
	gb, err := ParseQuotaGB(text)
	if err != nil {
		return b.say(chatID, "⚠️ مقدار نامعتبر است. یک عدد غیرمنفی وارد کنید:", nil)
	}

	s := b.sessions.Get(chatID)
	username := s.Scratch.ExistingUsername
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	bytes := GigabytesToBytes(gb)
	if err := client.UpdateUser(ctx, username, func(doc map[string]interface{}) {
		doc["data_limit"] = bytes
	}); err != nil {
		b.logger.Warn("data limit update failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, "⚠️ تنظیم حجم ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	b.sessions.Clear(chatID)
	return b.showUserInfo(chatID, username)
}

func (b *Bot) stepNewExpireTime(chatID int64, text string) error {
	days, err := ParseDays(text)
	if err != nil {
		return b.say(chatID, "⚠️ مقدار نامعتبر است. یک عدد صحیح غیرمنفی وارد کنید:", nil)
	}

	s := b.sessions.Get(chatID)
	username := s.Scratch.ExistingUsername
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	expire := ExpireFromDays(days, time.Now())
	if err := client.UpdateUser(ctx, username, func(doc map[string]interface{}) {
		doc["expire"] = expire
	}); err != nil {
		b.logger.Warn("expire update failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, "⚠️ تنظیم زمان انقضا ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	b.sessions.Clear(chatID)
	return b.showUserInfo(chatID, username)
}

func (b *Bot) stepSearchUsername(chatID int64, text string) error {
	if text == "" {
		return b.say(chatID, "⚠️ نام کاربری نمی‌تواند خالی باشد. دوباره وارد کنید:", nil)
	}
	b.sessions.Clear(chatID)
	return b.showUserInfo(chatID, text)
}

// ── owner steps ───────────────────────────────────────────────────────

func (b *Bot) stepAddAdmin(chatID int64, text string) error {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return b.say(chatID, "⚠️ شناسه نامعتبر است. یک عدد وارد کنید:", nil)
	}
	if b.isOwner(id) {
		return b.say(chatID, "⚠️ این شناسه متعلق به مالک ربات است.", nil)
	}
	if err := b.admins.Add(id); err != nil {
		b.logger.Error("admin add failed", zap.Int64("admin_id", id), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}

	b.sessions.Clear(chatID)
	b.logActivity(fmt.Sprintf("👨‍💼 مدیر %d افزوده شد", id))
	return b.say(chatID, fmt.Sprintf("✅ مدیر %d افزوده شد.", id), adminManagementMenu())
}

func (b *Bot) stepLogChannel(chatID int64, text string) error {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return b.say(chatID, "⚠️ شناسه کانال نامعتبر است. یک عدد وارد کنید (۰ = غیرفعال):", nil)
	}
	if err := b.settings.SetLogChannel(id); err != nil {
		b.logger.Error("log channel save failed", zap.Int64("channel_id", id), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}

	b.sessions.Clear(chatID)
	if id == 0 {
		return b.say(chatID, "✅ ارسال گزارش غیرفعال شد.", adminManagementMenu())
	}
	return b.say(chatID, fmt.Sprintf("✅ کانال گزارش روی %d تنظیم شد.", id), adminManagementMenu())
}

func (b *Bot) stepUserInfo(chatID int64, text string) error {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return b.say(chatID, "⚠️ شناسه نامعتبر است. یک عدد وارد کنید:", nil)
	}

	panels, err := b.panels.ByChat(id)
	if err != nil {
		b.logger.Error("panel list failed", zap.Int64("chat_id", id), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}

	isAdmin, _ := b.admins.Exists(id)
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 اطلاعات کاربر %d:\n", id)
	fmt.Fprintf(&sb, "مدیر: %s\n", yesNo(isAdmin || b.isOwner(id)))
	fmt.Fprintf(&sb, "تعداد پنل‌ها: %d\n", len(panels))
	for _, p := range panels {
		fmt.Fprintf(&sb, "\n📌 %s (%s)\n", p.Alias, p.URL)

		client := panel.NewClient(p.URL, p.Token, b.cfg.Panel.RequestTimeout)
		ctx, cancel := b.reqCtx()
		stats, err := b.agg.UserStats(ctx, client, false)
		cancel()
		if err != nil {
			b.logger.Warn("user info stats failed",
				zap.String("alias", p.Alias), zap.Error(err))
			sb.WriteString("⚠️ آمار این پنل در دسترس نیست.\n")
			continue
		}
		fmt.Fprintf(&sb, "👥 کل: %d | ✅ فعال: %d | ⏹ غیرفعال: %d | ⌛ منقضی: %d | 📉 حجم‌تمام: %d\n",
			stats.Total, stats.Active, stats.Inactive, stats.Expired, stats.Limited)
	}

	b.sessions.Clear(chatID)
	return b.say(chatID, sb.String(), adminManagementMenu())
}

func yesNo(v bool) string {
	if v {
		return "بله ✅"
	}
	return "خیر ❌"
}
