package bot

import "go.uber.org/zap"

// Notify sends a plain alert to a chat. Used by background jobs; the
// message is not ephemeral.
func (b *Bot) Notify(chatID int64, text string) {
	if _, err := b.msgr.Send(chatID, text, nil); err != nil {
		b.logger.Warn("notify send failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// logActivity forwards a line to the configured report channel. Channel 0
// means reporting is off. The sent message is not ephemeral: the channel
// is the audit trail.
func (b *Bot) logActivity(text string) {
	channelID, err := b.settings.LogChannel()
	if err != nil {
		b.logger.Error("log channel lookup failed", zap.Error(err))
		return
	}
	if channelID == 0 {
		return
	}
	if _, err := b.msgr.Send(channelID, text, nil); err != nil {
		b.logger.Warn("activity report send failed",
			zap.Int64("channel_id", channelID), zap.Error(err))
	}
}
