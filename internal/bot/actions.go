package bot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marzadmin/internal/models"
	"marzadmin/internal/panel"
)

var (
	errNoPanelSelected = errors.New("no panel selected")
	errPanelMissing    = errors.New("selected panel no longer exists")
)

// failureDetail renders a panel error for the operator: the panel's own
// detail text when present, a generic connectivity phrase otherwise.
func failureDetail(err error) string {
	if d := panel.Detail(err); d != "" {
		return d
	}
	return "خطای ارتباط با پنل"
}

// resolveSelectedPanel loads the session's selected panel from storage.
func (b *Bot) resolveSelectedPanel(chatID int64) (*models.Panel, error) {
	alias := b.sessions.Get(chatID).SelectedPanel
	if alias == "" {
		return nil, errNoPanelSelected
	}
	p, err := b.panels.ByAlias(chatID, alias)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errPanelMissing
	}
	return p, nil
}

// selectedClient builds an API client for the session's selected panel.
func (b *Bot) selectedClient(chatID int64) (*panel.Client, error) {
	p, err := b.resolveSelectedPanel(chatID)
	if err != nil {
		return nil, err
	}
	return panel.NewClient(p.URL, p.Token, b.cfg.Panel.RequestTimeout), nil
}

// panelGone recovers from a dangling panel selection: the selection is
// dropped and the admin lands back on panel selection.
func (b *Bot) panelGone(chatID int64, err error) error {
	b.logger.Warn("selected panel unavailable", zap.Int64("chat_id", chatID), zap.Error(err))
	s := b.sessions.Get(chatID)
	s.SelectedPanel = ""
	b.sessions.Clear(chatID)
	if err := b.say(chatID, "⚠️ پنل انتخاب‌شده دیگر در دسترس نیست. یک پنل انتخاب کنید:", nil); err != nil {
		return err
	}
	return b.showPanelSelection(chatID)
}

// ── admin management ──────────────────────────────────────────────────

func (b *Bot) showAdminManagement(chatID int64) error {
	if !b.isOwner(chatID) {
		return b.say(chatID, "🚫 این بخش فقط برای مالک ربات است.", mainMenu(false))
	}
	return b.say(chatID, "👨‍💼 مدیریت مدیران:", adminManagementMenu())
}

func (b *Bot) promptAddAdmin(chatID int64) error {
	if !b.isOwner(chatID) {
		return nil
	}
	b.sessions.SetStep(chatID, StepAwaitingAddAdmin)
	return b.say(chatID, "👤 شناسه عددی چت مدیر جدید را وارد کنید:", nil)
}

func (b *Bot) showRemoveAdmin(chatID int64) error {
	if !b.isOwner(chatID) {
		return nil
	}
	ids, err := b.admins.List()
	if err != nil {
		b.logger.Error("admin list failed", zap.Error(err))
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}
	if len(ids) == 0 {
		return b.say(chatID, "ℹ️ هیچ مدیری ثبت نشده است.", adminManagementMenu())
	}
	return b.say(chatID, "🗑 مدیر موردنظر برای حذف را انتخاب کنید:", removeAdminMenu(ids))
}

func (b *Bot) removeAdmin(chatID int64, idArg string) error {
	if !b.isOwner(chatID) {
		return nil
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}
	if err := b.admins.Remove(id); err != nil {
		b.logger.Error("admin remove failed", zap.Int64("admin_id", id), zap.Error(err))
		return b.say(chatID, msgGenericError, adminManagementMenu())
	}
	b.logActivity(fmt.Sprintf("🗑 مدیر %d حذف شد", id))
	return b.say(chatID, fmt.Sprintf("✅ مدیر %d حذف شد.", id), adminManagementMenu())
}

func (b *Bot) promptUserInfo(chatID int64) error {
	if !b.isOwner(chatID) {
		return nil
	}
	b.sessions.SetStep(chatID, StepAwaitingUserInfo)
	return b.say(chatID, "👤 شناسه عددی چت موردنظر را وارد کنید:", nil)
}

func (b *Bot) promptLogChannel(chatID int64) error {
	if !b.isOwner(chatID) {
		return nil
	}
	b.sessions.SetStep(chatID, StepAwaitingLogChannel)
	return b.say(chatID, "📣 شناسه عددی کانال گزارش را وارد کنید (۰ = غیرفعال):", nil)
}

// ── panel management ──────────────────────────────────────────────────

func (b *Bot) showPanelSelection(chatID int64) error {
	panels, err := b.panels.ByChat(chatID)
	if err != nil {
		b.logger.Error("panel list failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.say(chatID, msgGenericError, mainMenu(b.isOwner(chatID)))
	}
	if len(panels) == 0 {
		return b.say(chatID, "ℹ️ هنوز پنلی ثبت نکرده‌اید.", welcomeMenu(b.isOwner(chatID)))
	}
	return b.say(chatID, "📋 پنل موردنظر را انتخاب کنید:", panelSelectionMenu(panels))
}

func (b *Bot) showDeletePanel(chatID int64) error {
	panels, err := b.panels.ByChat(chatID)
	if err != nil {
		b.logger.Error("panel list failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return b.say(chatID, msgGenericError, mainMenu(b.isOwner(chatID)))
	}
	if len(panels) == 0 {
		return b.say(chatID, "ℹ️ هنوز پنلی ثبت نکرده‌اید.", welcomeMenu(b.isOwner(chatID)))
	}
	return b.say(chatID, "🗑 پنل موردنظر برای حذف را انتخاب کنید:", deletePanelMenu(panels))
}

func (b *Bot) deletePanel(chatID int64, alias string) error {
	if err := b.panels.Delete(chatID, alias); err != nil {
		b.logger.Error("panel delete failed",
			zap.Int64("chat_id", chatID), zap.String("alias", alias), zap.Error(err))
		return b.say(chatID, msgGenericError, mainMenu(b.isOwner(chatID)))
	}

	s := b.sessions.Get(chatID)
	if s.SelectedPanel == alias {
		s.SelectedPanel = ""
	}
	b.logActivity(fmt.Sprintf("🗑 پنل «%s» توسط %d حذف شد", alias, chatID))
	if err := b.say(chatID, fmt.Sprintf("✅ پنل «%s» حذف شد.", alias), nil); err != nil {
		return err
	}
	return b.showPanelSelection(chatID)
}

// selectPanel activates a panel and renders fresh stats for it.
func (b *Bot) selectPanel(chatID int64, alias string) error {
	p, err := b.panels.ByAlias(chatID, alias)
	if err != nil || p == nil {
		return b.panelGone(chatID, err)
	}

	s := b.sessions.Get(chatID)
	s.SelectedPanel = p.Alias
	b.sessions.Clear(chatID)
	return b.showPanelStats(chatID, p, false)
}

func (b *Bot) refreshStats(chatID int64) error {
	p, err := b.resolveSelectedPanel(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}
	return b.showPanelStats(chatID, p, true)
}

// showPanelStats renders the user-count breakdown plus the panel menu.
// The aggregator may return partial counts with an error; those are shown
// with an explicit warning instead of being presented as exact.
func (b *Bot) showPanelStats(chatID int64, p *models.Panel, force bool) error {
	client := panel.NewClient(p.URL, p.Token, b.cfg.Panel.RequestTimeout)

	ctx, cancel := b.reqCtx()
	defer cancel()
	stats, err := b.agg.UserStats(ctx, client, force)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📌 پنل: %s\n\n", p.Alias)
	if err != nil {
		sb.WriteString("⚠️ آمار کامل در دسترس نیست؛ مقادیر زیر ناقص‌اند:\n\n")
	}
	fmt.Fprintf(&sb, "👥 کل کاربران: %d\n", stats.Total)
	fmt.Fprintf(&sb, "✅ فعال: %d\n", stats.Active)
	fmt.Fprintf(&sb, "⏹ غیرفعال: %d\n", stats.Inactive)
	fmt.Fprintf(&sb, "⌛ منقضی: %d\n", stats.Expired)
	fmt.Fprintf(&sb, "📉 حجم‌تمام: %d", stats.Limited)

	return b.say(chatID, sb.String(), panelActionMenu())
}

// ── user lookup and display ───────────────────────────────────────────

func (b *Bot) showUserInfo(chatID int64, username string) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	u, err := client.GetUser(ctx, username)
	if err != nil {
		if panel.IsNotFound(err) {
			return b.say(chatID, fmt.Sprintf("🔍 کاربر «%s» یافت نشد.", username), panelActionMenu())
		}
		b.logger.Warn("user fetch failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ دریافت اطلاعات کاربر ناموفق بود: "+failureDetail(err), panelActionMenu())
	}

	now := time.Now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 نام کاربری: %s\n", u.Username)
	fmt.Fprintf(&sb, "وضعیت: %s\n", statusLabel(u.Status))
	if u.DataLimit == 0 {
		sb.WriteString("حجم: نامحدود ♾\n")
	} else {
		fmt.Fprintf(&sb, "حجم: %s\n", FormatTraffic(u.DataLimit))
	}
	fmt.Fprintf(&sb, "مصرف‌شده: %s\n", FormatTraffic(u.UsedTraffic))
	fmt.Fprintf(&sb, "انقضا: %s\n", FormatExpire(u.Expire, now))
	if u.Note != "" {
		fmt.Fprintf(&sb, "یادداشت: %s\n", u.Note)
	}
	if u.SubscriptionURL != "" {
		fmt.Fprintf(&sb, "\n🔗 لینک اشتراک:\n%s", u.SubscriptionURL)
	}

	return b.say(chatID, sb.String(), userActionMenu(u.Username))
}

func statusLabel(s panel.Status) string {
	switch s {
	case panel.StatusActive:
		return "فعال ✅"
	case panel.StatusDisabled:
		return "غیرفعال ⏹"
	case panel.StatusOnHold:
		return "در انتظار ⏸"
	default:
		return string(s)
	}
}

// ── create user ───────────────────────────────────────────────────────

// randomUsername fills the username step with a generated value and moves
// straight to the quota step.
func (b *Bot) randomUsername(chatID int64) error {
	if b.sessions.Step(chatID) != StepAwaitingCreateUsername {
		return nil
	}
	username := "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	s := b.sessions.Get(chatID)
	s.Scratch.Username = username
	s.Step = StepAwaitingDataLimit
	if err := b.say(chatID, fmt.Sprintf("🎲 نام کاربری: %s", username), nil); err != nil {
		return err
	}
	return b.say(chatID, "📊 حجم مصرفی را به گیگابایت وارد کنید (۰ = نامحدود):", nil)
}

// finishCreateUser performs the terminal create call with the scratchpad
// accumulated over the flow.
func (b *Bot) finishCreateUser(chatID int64, note string) error {
	s := b.sessions.Get(chatID)
	req := panel.CreateUserRequest{
		Username:  s.Scratch.Username,
		DataLimit: s.Scratch.DataLimit,
		Expire:    s.Scratch.Expire,
		Note:      note,
	}
	if req.Username == "" {
		b.sessions.Clear(chatID)
		return b.say(chatID, msgGenericError, panelActionMenu())
	}

	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.CreateUser(ctx, req); err != nil {
		b.logger.Warn("user create failed",
			zap.Int64("chat_id", chatID), zap.String("username", req.Username), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, "⚠️ ایجاد کاربر ناموفق بود: "+failureDetail(err), panelActionMenu())
	}

	b.sessions.Clear(chatID)
	b.logActivity(fmt.Sprintf("🪐 کاربر «%s» توسط %d ایجاد شد", req.Username, chatID))
	return b.showUserInfo(chatID, req.Username)
}

// ── single-user actions ───────────────────────────────────────────────

func (b *Bot) deleteUser(chatID int64, username string) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.DeleteUser(ctx, username); err != nil {
		b.logger.Warn("user delete failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ حذف کاربر ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	b.logActivity(fmt.Sprintf("🗑 کاربر «%s» توسط %d حذف شد", username, chatID))
	return b.say(chatID, fmt.Sprintf("✅ کاربر «%s» حذف شد.", username), panelActionMenu())
}

func (b *Bot) setUserStatus(chatID int64, username string, status panel.Status) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.UpdateUser(ctx, username, func(doc map[string]interface{}) {
		doc["status"] = string(status)
	}); err != nil {
		b.logger.Warn("status update failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ تغییر وضعیت ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	return b.showUserInfo(chatID, username)
}

func (b *Bot) promptNewDataLimit(chatID int64, username string) error {
	s := b.sessions.Get(chatID)
	s.Scratch.ExistingUsername = username
	s.Step = StepAwaitingNewDataLimit
	return b.say(chatID, "📊 حجم جدید را به گیگابایت وارد کنید (۰ = نامحدود):", nil)
}

func (b *Bot) promptNewExpireTime(chatID int64, username string) error {
	s := b.sessions.Get(chatID)
	s.Scratch.ExistingUsername = username
	s.Step = StepAwaitingNewExpireTime
	return b.say(chatID, "⏰ مدت اعتبار جدید را به روز وارد کنید (۰ = بدون انقضا):", nil)
}

// ── inbound management ────────────────────────────────────────────────

// flattenInbounds turns the protocol -> tags catalog into sorted
// "protocol:tag" entries.
func flattenInbounds(catalog map[string][]string) []string {
	var flat []string
	for protocol, tags := range catalog {
		for _, tag := range tags {
			flat = append(flat, protocol+":"+tag)
		}
	}
	sort.Strings(flat)
	return flat
}

// selectedInbounds flattens a user's current inbound assignment.
func selectedInbounds(u *panel.User) []string {
	return flattenInbounds(u.Inbounds)
}

// manageConfigs opens the inbound toggle loop pre-seeded with the user's
// current assignment.
func (b *Bot) manageConfigs(chatID int64, username string) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	catalog, err := client.GetInbounds(ctx)
	if err != nil {
		b.logger.Warn("inbound catalog fetch failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return b.say(chatID, "⚠️ دریافت کانفیگ‌ها ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	u, err := client.GetUser(ctx, username)
	if err != nil {
		b.logger.Warn("user fetch failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ دریافت اطلاعات کاربر ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	s := b.sessions.Get(chatID)
	s.Scratch.ExistingUsername = username
	s.Scratch.AvailableInbounds = flattenInbounds(catalog)
	s.Scratch.SelectedInbounds = selectedInbounds(u)

	return b.say(chatID, "⚙️ کانفیگ‌های موردنظر را انتخاب کنید:",
		configSelectionMenu(s.Scratch.AvailableInbounds, s.Scratch.SelectedInbounds, username))
}

// toggleInbound flips one entry in the pending selection and re-renders.
func (b *Bot) toggleInbound(chatID int64, inbound, username string) error {
	s := b.sessions.Get(chatID)
	if s.Scratch.ExistingUsername != username || len(s.Scratch.AvailableInbounds) == 0 {
		// Stale button from a previous selection round.
		return b.manageConfigs(chatID, username)
	}

	found := false
	kept := s.Scratch.SelectedInbounds[:0]
	for _, sel := range s.Scratch.SelectedInbounds {
		if sel == inbound {
			found = true
			continue
		}
		kept = append(kept, sel)
	}
	if found {
		s.Scratch.SelectedInbounds = kept
	} else {
		s.Scratch.SelectedInbounds = append(s.Scratch.SelectedInbounds, inbound)
	}

	return b.say(chatID, "⚙️ کانفیگ‌های موردنظر را انتخاب کنید:",
		configSelectionMenu(s.Scratch.AvailableInbounds, s.Scratch.SelectedInbounds, username))
}

// confirmConfigs writes the pending inbound selection back to the panel.
func (b *Bot) confirmConfigs(chatID int64, username string) error {
	s := b.sessions.Get(chatID)
	if s.Scratch.ExistingUsername != username {
		return b.manageConfigs(chatID, username)
	}

	assignment := make(map[string][]string)
	for _, sel := range s.Scratch.SelectedInbounds {
		protocol, tag, ok := cutInbound(sel)
		if !ok {
			continue
		}
		assignment[protocol] = append(assignment[protocol], tag)
	}

	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.UpdateUser(ctx, username, func(doc map[string]interface{}) {
		doc["inbounds"] = assignment
	}); err != nil {
		b.logger.Warn("inbound update failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		b.sessions.Clear(chatID)
		return b.say(chatID, "⚠️ ذخیره کانفیگ‌ها ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	b.sessions.Clear(chatID)
	return b.showUserInfo(chatID, username)
}

// deleteAllConfigs strips every inbound from the user in one update.
func (b *Bot) deleteAllConfigs(chatID int64, username string) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.UpdateUser(ctx, username, func(doc map[string]interface{}) {
		doc["inbounds"] = map[string][]string{}
	}); err != nil {
		b.logger.Warn("inbound wipe failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ حذف کانفیگ‌ها ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	return b.showUserInfo(chatID, username)
}

// regenerateLink revokes the subscription and fetches the fresh link. The
// two failures get distinct messages: a failed revoke leaves the old link
// valid, a failed re-fetch means the link rotated but could not be shown.
func (b *Bot) regenerateLink(chatID int64, username string) error {
	client, err := b.selectedClient(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}

	ctx, cancel := b.reqCtx()
	defer cancel()
	if err := client.RevokeSubscription(ctx, username); err != nil {
		b.logger.Warn("subscription revoke failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ تولید لینک جدید ناموفق بود: "+failureDetail(err), userActionMenu(username))
	}

	u, err := client.GetUser(ctx, username)
	if err != nil {
		b.logger.Warn("subscription fetch after revoke failed",
			zap.Int64("chat_id", chatID), zap.String("username", username), zap.Error(err))
		return b.say(chatID, "⚠️ لینک جدید ساخته شد اما دریافت آن ناموفق بود. دوباره جستجو کنید.", userActionMenu(username))
	}

	return b.say(chatID, fmt.Sprintf("🔄 لینک جدید کاربر «%s»:\n%s", username, u.SubscriptionURL), userActionMenu(username))
}
