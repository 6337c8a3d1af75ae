package cron

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marzadmin/internal/config"
	"marzadmin/internal/models"
	"marzadmin/internal/panel"
	"marzadmin/internal/repository"
)

// Notify delivers one report line to a Telegram chat.
type Notify func(chatID int64, text string)

// Scheduler manages the background jobs: panel token refresh, stats cache
// pruning and panel uptime checks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	logger   *zap.Logger
	panels   *repository.PanelRepository
	settings *repository.SettingRepository
	cache    *panel.StatsCache
	notify   Notify
}

// New creates a new cron scheduler.
func New(
	cfg *config.Config,
	panels *repository.PanelRepository,
	settings *repository.SettingRepository,
	cache *panel.StatsCache,
	notify Notify,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		logger:   logger,
		panels:   panels,
		settings: settings,
		cache:    cache,
		notify:   notify,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Stats cache prune - every 10 minutes
	s.cron.AddFunc("0 */10 * * * *", func() {
		s.logger.Debug("Running: stats cache prune")
		s.pruneStatsCache()
	})

	// Panel token refresh - every 12 hours
	s.cron.AddFunc("0 0 */12 * * *", func() {
		s.logger.Debug("Running: panel token refresh")
		s.refreshPanelTokens()
	})

	// Panel uptime check - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: panel uptime check")
		s.panelUptimeCheck()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) pruneStatsCache() {
	defer s.recoverFromPanic("pruneStatsCache")

	if evicted := s.cache.Prune(); evicted > 0 {
		s.logger.Debug("Pruned stats cache", zap.Int("evicted", evicted))
	}
}

// refreshPanelTokens re-authenticates every stored panel with its saved
// credentials so bearer tokens never age out between operator visits.
func (s *Scheduler) refreshPanelTokens() {
	defer s.recoverFromPanic("refreshPanelTokens")

	panels, err := s.panels.All()
	if err != nil {
		s.logger.Error("Token refresh: panel list failed", zap.Error(err))
		return
	}

	for _, p := range panels {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Panel.RequestTimeout)
		token, err := panel.Authenticate(ctx, p.URL, p.Username, p.Password, s.cfg.Panel.RequestTimeout)
		cancel()
		if err != nil {
			s.logger.Warn("Token refresh failed",
				zap.String("alias", p.Alias), zap.String("url", p.URL), zap.Error(err))
			continue
		}
		if token == p.Token {
			continue
		}
		if err := s.panels.UpdateToken(p.ID, token); err != nil {
			s.logger.Error("Token refresh: save failed",
				zap.String("alias", p.Alias), zap.Error(err))
		}
	}
}

// panelUptimeCheck probes each stored panel over TCP and alerts the owning
// chat when one stops answering.
func (s *Scheduler) panelUptimeCheck() {
	defer s.recoverFromPanic("panelUptimeCheck")

	panels, err := s.panels.All()
	if err != nil {
		s.logger.Error("Uptime check: panel list failed", zap.Error(err))
		return
	}

	logChannel, err := s.settings.LogChannel()
	if err != nil {
		s.logger.Error("Uptime check: log channel lookup failed", zap.Error(err))
	}

	for _, p := range panels {
		if err := probePanel(&p); err != nil {
			s.logger.Warn("Panel unreachable",
				zap.String("alias", p.Alias), zap.String("url", p.URL), zap.Error(err))
			if s.notify == nil {
				continue
			}
			alert := fmt.Sprintf("🔴 پنل «%s» در دسترس نیست!\n🌐 آدرس: %s", p.Alias, p.URL)
			s.notify(p.ChatID, alert)
			if logChannel != 0 {
				s.notify(logChannel, alert)
			}
		}
	}
}

func probePanel(p *models.Panel) error {
	parsed, err := url.Parse(p.URL)
	if err != nil {
		return err
	}

	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 5*time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
