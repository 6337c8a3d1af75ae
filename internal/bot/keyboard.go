package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"marzadmin/internal/models"
)

func btn(text string, action Action, args ...string) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: CallbackData(action, args...)}
}

// menuLayout arranges buttons with the first and last on their own rows
// and the middle ones paired.
func menuLayout(buttons []tele.InlineButton) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	if len(buttons) == 0 {
		return &tele.ReplyMarkup{InlineKeyboard: rows}
	}

	rows = append(rows, []tele.InlineButton{buttons[0]})
	if len(buttons) > 2 {
		middle := buttons[1 : len(buttons)-1]
		for i := 0; i < len(middle); i += 2 {
			row := []tele.InlineButton{middle[i]}
			if i+1 < len(middle) {
				row = append(row, middle[i+1])
			}
			rows = append(rows, row)
		}
	}
	if len(buttons) >= 2 {
		rows = append(rows, []tele.InlineButton{buttons[len(buttons)-1]})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func mainMenu(isOwner bool) *tele.ReplyMarkup {
	buttons := []tele.InlineButton{
		btn("📋 مدیریت پنل‌ها", ActionManagePanels),
		btn("➕ افزودن پنل جدید", ActionAddPanel),
	}
	if isOwner {
		buttons = append(buttons, btn("👨‍💼 مدیریت مدیران", ActionManageAdmins))
	}
	return menuLayout(buttons)
}

func welcomeMenu(isOwner bool) *tele.ReplyMarkup {
	buttons := []tele.InlineButton{
		btn("➕ افزودن پنل جدید", ActionAddPanel),
	}
	if isOwner {
		buttons = append(buttons, btn("👨‍💼 مدیریت مدیران", ActionManageAdmins))
	}
	return menuLayout(buttons)
}

func adminManagementMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("➕ افزودن مدیر", ActionAddAdmin),
		btn("🗑 حذف مدیر", ActionRemoveAdmin),
		btn("📊 اطلاعات کاربر", ActionUserInfo),
		btn("📣 تنظیم کانال گزارش", ActionSetLogChannel),
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	})
}

func removeAdminMenu(adminIDs []int64) *tele.ReplyMarkup {
	buttons := make([]tele.InlineButton, 0, len(adminIDs)+1)
	for _, id := range adminIDs {
		idStr := fmt.Sprintf("%d", id)
		buttons = append(buttons, btn("🗑 "+idStr, ActionConfirmRemoveAdmin, idStr))
	}
	buttons = append(buttons, btn("🔙 بازگشت به منوی اصلی", ActionMainMenu))
	return menuLayout(buttons)
}

func panelSelectionMenu(panels []models.Panel) *tele.ReplyMarkup {
	buttons := make([]tele.InlineButton, 0, len(panels)+2)
	for _, p := range panels {
		buttons = append(buttons, btn("📌 "+p.Alias, ActionSelectPanel, p.Alias))
	}
	buttons = append(buttons,
		btn("🗑 حذف پنل", ActionDeletePanel),
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	)
	return menuLayout(buttons)
}

func deletePanelMenu(panels []models.Panel) *tele.ReplyMarkup {
	buttons := make([]tele.InlineButton, 0, len(panels)+2)
	for _, p := range panels {
		buttons = append(buttons, btn("🗑 "+p.Alias, ActionConfirmDeletePanel, p.Alias))
	}
	buttons = append(buttons,
		btn("⬅️ بازگشت به انتخاب پنل", ActionBackToPanels),
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	)
	return menuLayout(buttons)
}

func panelActionMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("🔍 جستجوی کاربر", ActionSearchUser),
		btn("🪐 ایجاد کاربر", ActionCreateUser),
		btn("♻️ بروزرسانی آمار", ActionRefreshStats),
		btn("⌛ حذف کاربران منقضی", ActionPurgeExpired),
		btn("📉 حذف کاربران حجم‌تمام", ActionPurgeExhausted),
		btn("⬅️ بازگشت به انتخاب پنل", ActionBackToPanels),
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	})
}

func userActionMenu(username string) *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("🗑 حذف کاربر", ActionDeleteUser, username),
		btn("⏹ غیرفعال کردن", ActionDisableUser, username),
		btn("▶️ فعال کردن", ActionEnableUser, username),
		btn("📊 تنظیم حجم", ActionSetDataLimit, username),
		btn("⏰ تنظیم زمان انقضا", ActionSetExpireTime, username),
		btn("⚙️ مدیریت کانفیگ‌ها", ActionManageConfigs, username),
		btn("🗑 حذف همه کانفیگ‌ها", ActionDeleteConfigs, username),
		btn("🔄 تولید لینک جدید", ActionRegenerateLink, username),
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	})
}

// configSelectionMenu renders the inbound toggle loop. Each inbound is a
// "protocol:tag" entry; selected ones get a filled marker.
func configSelectionMenu(available, selected []string, username string) *tele.ReplyMarkup {
	selectedSet := make(map[string]bool, len(selected))
	for _, s := range selected {
		selectedSet[s] = true
	}

	buttons := make([]tele.InlineButton, 0, len(available)+1)
	for _, inbound := range available {
		marker := "⚪"
		if selectedSet[inbound] {
			marker = "🔘"
		}
		protocol, tag, _ := cutInbound(inbound)
		buttons = append(buttons, btn(marker+" "+inbound, ActionToggleInbound, protocol, tag, username))
	}
	buttons = append(buttons, btn("✅ تأیید", ActionConfirmConfigs, username))
	return menuLayout(buttons)
}

func panelLoginMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("🔙 بازگشت به منوی اصلی", ActionMainMenu),
	})
}

func noteMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("📝 بدون یادداشت", ActionSetNoteNone),
	})
}

func createUsernameMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("🎲 تولید نام تصادفی", ActionRandomUsername),
	})
}

func purgeConfirmMenu() *tele.ReplyMarkup {
	return menuLayout([]tele.InlineButton{
		btn("✅ تأیید حذف", ActionConfirmPurge),
		btn("❌ انصراف", ActionCancelPurge),
	})
}
