package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marzadmin/internal/panel"
)

// promptPurge records the pending batch deletion and asks for explicit
// confirmation; nothing is deleted until the confirm button.
func (b *Bot) promptPurge(chatID int64, kind PurgeKind) error {
	if _, err := b.resolveSelectedPanel(chatID); err != nil {
		return b.panelGone(chatID, err)
	}

	s := b.sessions.Get(chatID)
	s.Scratch.PendingPurge = kind

	var what string
	switch kind {
	case PurgeExpired:
		what = "کاربران منقضی‌شده"
	case PurgeExhausted:
		what = "کاربران حجم‌تمام"
	}
	return b.say(chatID,
		fmt.Sprintf("⚠️ همه %s این پنل حذف خواهند شد. این عملیات بازگشت‌پذیر نیست.\nادامه می‌دهید؟", what),
		purgeConfirmMenu())
}

// confirmPurge runs the recorded batch deletion and reports the outcome.
// A partial run is labeled as such so the operator never mistakes it for
// full coverage.
func (b *Bot) confirmPurge(chatID int64) error {
	s := b.sessions.Get(chatID)
	kind := s.Scratch.PendingPurge
	if kind == "" {
		// Confirm without a pending purge: stale button.
		return b.say(chatID, msgGenericError, panelActionMenu())
	}

	p, err := b.resolveSelectedPanel(chatID)
	if err != nil {
		return b.panelGone(chatID, err)
	}
	client := panel.NewClient(p.URL, p.Token, b.cfg.Panel.RequestTimeout)

	var pred panel.PurgePredicate
	switch kind {
	case PurgeExpired:
		pred = panel.ExpiredUsers(time.Now().Unix())
	case PurgeExhausted:
		pred = panel.ExhaustedUsers()
	}

	if err := b.say(chatID, "⏳ حذف گروهی آغاز شد...", nil); err != nil {
		return err
	}

	ctx, cancel := panel.PurgeTimeout(context.Background(), b.cfg.Panel.BatchTimeout)
	defer cancel()
	report := panel.Purge(ctx, client, b.cfg.Panel.PurgePageSize, pred, b.logger)

	b.sessions.Clear(chatID)
	b.logActivity(fmt.Sprintf("🧹 حذف گروهی (%s) روی پنل «%s» توسط %d: %d حذف، %d ناموفق",
		kind, p.Alias, chatID, report.Deleted, report.Skipped))

	if report.Partial {
		b.logger.Warn("purge finished partially",
			zap.Int64("chat_id", chatID), zap.String("panel", p.Alias), zap.Error(report.Err))
	}

	return b.say(chatID, purgeReportText(report), panelActionMenu())
}

func (b *Bot) cancelPurge(chatID int64) error {
	b.sessions.Clear(chatID)
	return b.say(chatID, "❌ حذف گروهی لغو شد.", panelActionMenu())
}

// purgeReportText renders a PurgeReport for the operator.
func purgeReportText(report panel.PurgeReport) string {
	var sb strings.Builder
	if report.Partial {
		sb.WriteString("⚠️ عملیات ناقص ماند؛ همه کاربران بررسی نشدند.\n\n")
	}
	fmt.Fprintf(&sb, "🧹 %d کاربر حذف شد.", report.Deleted)
	if report.Skipped > 0 {
		fmt.Fprintf(&sb, "\n⚠️ حذف %d کاربر ناموفق بود.", report.Skipped)
	}
	if len(report.Names) > 0 {
		sb.WriteString("\n\nنمونه کاربران حذف‌شده:\n")
		for _, name := range report.Names {
			fmt.Fprintf(&sb, "• %s\n", name)
		}
	}
	return sb.String()
}
