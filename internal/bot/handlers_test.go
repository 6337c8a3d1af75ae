package bot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"marzadmin/internal/config"
	"marzadmin/internal/models"
	"marzadmin/internal/panel"
)

// stubMessenger records sends and deletes instead of talking to Telegram.
type stubMessenger struct {
	nextID  int
	sent    []string
	sentTo  []int64
	deleted []int
}

func (m *stubMessenger) Send(chatID int64, text string, _ *tele.ReplyMarkup) (int, error) {
	m.nextID++
	m.sent = append(m.sent, text)
	m.sentTo = append(m.sentTo, chatID)
	return m.nextID, nil
}

func (m *stubMessenger) Delete(_ int64, messageID int) error {
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *stubMessenger) lastText() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

type stubPanels struct {
	panels []models.Panel
}

func (s *stubPanels) ByChat(chatID int64) ([]models.Panel, error) {
	var out []models.Panel
	for _, p := range s.panels {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPanels) ByAlias(chatID int64, alias string) (*models.Panel, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	for i := range s.panels {
		if s.panels[i].ChatID == chatID && s.panels[i].Alias == alias {
			return &s.panels[i], nil
		}
	}
	return nil, nil
}

func (s *stubPanels) Save(p *models.Panel) error {
	p.Alias = strings.ToLower(strings.TrimSpace(p.Alias))
	for i := range s.panels {
		if s.panels[i].ChatID == p.ChatID && s.panels[i].Alias == p.Alias {
			s.panels[i] = *p
			return nil
		}
	}
	s.panels = append(s.panels, *p)
	return nil
}

func (s *stubPanels) Delete(chatID int64, alias string) error {
	alias = strings.ToLower(strings.TrimSpace(alias))
	for i := range s.panels {
		if s.panels[i].ChatID == chatID && s.panels[i].Alias == alias {
			s.panels = append(s.panels[:i], s.panels[i+1:]...)
			return nil
		}
	}
	return nil
}

type stubAdmins struct {
	ids map[int64]bool
}

func (s *stubAdmins) Add(chatID int64) error {
	if s.ids == nil {
		s.ids = make(map[int64]bool)
	}
	s.ids[chatID] = true
	return nil
}

func (s *stubAdmins) Remove(chatID int64) error {
	delete(s.ids, chatID)
	return nil
}

func (s *stubAdmins) List() ([]int64, error) {
	var out []int64
	for id := range s.ids {
		out = append(out, id)
	}
	return out, nil
}

func (s *stubAdmins) Exists(chatID int64) (bool, error) {
	return s.ids[chatID], nil
}

type stubSettings struct {
	channel int64
}

func (s *stubSettings) LogChannel() (int64, error)          { return s.channel, nil }
func (s *stubSettings) SetLogChannel(channelID int64) error { s.channel = channelID; return nil }

const (
	testOwner = int64(100)
	testAdmin = int64(200)
)

func newTestBot() (*Bot, *stubMessenger, *stubPanels) {
	msgr := &stubMessenger{}
	panels := &stubPanels{}
	admins := &stubAdmins{ids: map[int64]bool{testAdmin: true}}

	cfg := &config.Config{
		Bot: config.BotConfig{OwnerIDs: []int64{testOwner}},
		Panel: config.PanelConfig{
			RequestTimeout: 5 * time.Second,
			BatchTimeout:   time.Minute,
			StatsTTL:       time.Minute,
			StatsPageSize:  200,
			PurgePageSize:  100,
		},
	}

	b := &Bot{
		cfg:      cfg,
		logger:   zap.NewNop(),
		sessions: NewSessionManager(),
		msgr:     msgr,
		panels:   panels,
		admins:   admins,
		settings: &stubSettings{},
		agg:      panel.NewAggregator(panel.NewStatsCache(time.Minute), 200, zap.NewNop()),
	}
	return b, msgr, panels
}

func TestStrangersAreDenied(t *testing.T) {
	b, msgr, _ := newTestBot()

	if err := b.handleText(999, "hello"); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if !strings.Contains(msgr.lastText(), "🚫") {
		t.Fatalf("expected denial, got %q", msgr.lastText())
	}
}

func TestStrangerCallbacksIgnored(t *testing.T) {
	b, msgr, _ := newTestBot()

	if err := b.handleCallback(999, Callback{Action: ActionAddPanel}); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if len(msgr.sent) != 0 {
		t.Fatalf("stranger callback produced output: %v", msgr.sent)
	}
}

func TestAddPanelFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			w.Write([]byte(`{"access_token":"tok123"}`))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, _, panels := newTestBot()

	if err := b.handleCallback(testAdmin, Callback{Action: ActionAddPanel}); err != nil {
		t.Fatalf("add_panel callback: %v", err)
	}
	if b.sessions.Step(testAdmin) != StepAwaitingPanelAlias {
		t.Fatalf("step = %q", b.sessions.Step(testAdmin))
	}

	steps := []struct {
		input string
		next  Step
	}{
		{"Frankfurt", StepAwaitingPanelURL},
		{srv.URL, StepAwaitingAdminUsername},
		{"admin", StepAwaitingAdminPassword},
		{"secret", StepIdle},
	}
	for _, st := range steps {
		if err := b.handleText(testAdmin, st.input); err != nil {
			t.Fatalf("handleText(%q): %v", st.input, err)
		}
		if got := b.sessions.Step(testAdmin); got != st.next {
			t.Fatalf("after %q step = %q, want %q", st.input, got, st.next)
		}
	}

	if len(panels.panels) != 1 {
		t.Fatalf("panels saved = %d, want 1", len(panels.panels))
	}
	saved := panels.panels[0]
	if saved.Alias != "frankfurt" {
		t.Fatalf("alias = %q, want normalized frankfurt", saved.Alias)
	}
	if saved.Token != "tok123" || saved.Username != "admin" || saved.Password != "secret" {
		t.Fatalf("saved panel = %+v", saved)
	}
}

func TestInvalidURLKeepsStep(t *testing.T) {
	b, msgr, _ := newTestBot()
	b.sessions.SetStep(testAdmin, StepAwaitingPanelURL)

	if err := b.handleText(testAdmin, "not-a-url"); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if b.sessions.Step(testAdmin) != StepAwaitingPanelURL {
		t.Fatal("invalid URL must not advance the step")
	}
	if !strings.Contains(msgr.lastText(), "⚠️") {
		t.Fatalf("expected re-prompt, got %q", msgr.lastText())
	}
}

func TestInvalidQuotaKeepsStep(t *testing.T) {
	b, _, _ := newTestBot()
	s := b.sessions.Get(testAdmin)
	s.Scratch.Username = "alice"
	s.Step = StepAwaitingDataLimit

	for _, bad := range []string{"abc", "-5"} {
		if err := b.handleText(testAdmin, bad); err != nil {
			t.Fatalf("handleText(%q): %v", bad, err)
		}
		if b.sessions.Step(testAdmin) != StepAwaitingDataLimit {
			t.Fatalf("input %q advanced the step", bad)
		}
	}

	if err := b.handleText(testAdmin, "10"); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if b.sessions.Step(testAdmin) != StepAwaitingExpireTime {
		t.Fatal("valid quota should advance to expire step")
	}
	if got := b.sessions.Get(testAdmin).Scratch.DataLimit; got != 10<<30 {
		t.Fatalf("scratch data limit = %d, want %d", got, int64(10)<<30)
	}
}

func TestShortUsernameRejected(t *testing.T) {
	b, _, _ := newTestBot()
	b.sessions.SetStep(testAdmin, StepAwaitingCreateUsername)

	if err := b.handleText(testAdmin, "ab"); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if b.sessions.Step(testAdmin) != StepAwaitingCreateUsername {
		t.Fatal("two-character username must be rejected")
	}
}

func TestEphemeralSweptOnNextStep(t *testing.T) {
	b, msgr, _ := newTestBot()
	b.sessions.SetStep(testAdmin, StepAwaitingPanelAlias)

	if err := b.handleText(testAdmin, "fra"); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	promptID := msgr.nextID

	if err := b.handleText(testAdmin, "still-not-a-url"); err != nil {
		t.Fatalf("handleText: %v", err)
	}

	found := false
	for _, id := range msgr.deleted {
		if id == promptID {
			found = true
		}
	}
	if !found {
		t.Fatalf("previous prompt %d not deleted; deleted = %v", promptID, msgr.deleted)
	}
}

func TestPurgeRequiresConfirmation(t *testing.T) {
	now := time.Now().Unix()
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/users":
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			if offset > 0 {
				json.NewEncoder(w).Encode(map[string]interface{}{"users": []panel.User{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"users": []panel.User{
				{Username: "dead1", Expire: now - 10},
				{Username: "alive", Expire: now + 1000},
				{Username: "dead2", Expire: now - 10},
			}})
		case strings.HasPrefix(r.URL.Path, "/api/user/") && r.Method == http.MethodDelete:
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/api/user/"))
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b, msgr, panels := newTestBot()
	panels.Save(&models.Panel{ChatID: testAdmin, Alias: "fra", URL: srv.URL, Token: "tok"})
	b.sessions.Get(testAdmin).SelectedPanel = "fra"

	if err := b.handleCallback(testAdmin, Callback{Action: ActionPurgeExpired}); err != nil {
		t.Fatalf("purge prompt: %v", err)
	}
	if len(deleted) != 0 {
		t.Fatal("nothing may be deleted before confirmation")
	}

	if err := b.handleCallback(testAdmin, Callback{Action: ActionConfirmPurge}); err != nil {
		t.Fatalf("purge confirm: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %v, want dead1 and dead2", deleted)
	}
	report := msgr.lastText()
	if !strings.Contains(report, "2") || !strings.Contains(report, "dead1") {
		t.Fatalf("report lacks count or names: %q", report)
	}
}

func TestPurgeCancel(t *testing.T) {
	b, _, panels := newTestBot()
	panels.Save(&models.Panel{ChatID: testAdmin, Alias: "fra", URL: "http://unused.invalid", Token: "tok"})
	b.sessions.Get(testAdmin).SelectedPanel = "fra"

	if err := b.handleCallback(testAdmin, Callback{Action: ActionPurgeExhausted}); err != nil {
		t.Fatalf("purge prompt: %v", err)
	}
	if err := b.handleCallback(testAdmin, Callback{Action: ActionCancelPurge}); err != nil {
		t.Fatalf("purge cancel: %v", err)
	}
	if got := b.sessions.Get(testAdmin).Scratch.PendingPurge; got != "" {
		t.Fatalf("pending purge survived cancel: %q", got)
	}
}

func TestConfirmPurgeWithoutPending(t *testing.T) {
	b, msgr, _ := newTestBot()
	if err := b.handleCallback(testAdmin, Callback{Action: ActionConfirmPurge}); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if msgr.lastText() != msgGenericError {
		t.Fatalf("stale confirm should yield generic error, got %q", msgr.lastText())
	}
}

func TestDanglingPanelSelectionRecovers(t *testing.T) {
	b, msgr, _ := newTestBot()
	b.sessions.Get(testAdmin).SelectedPanel = "ghost"

	if err := b.handleCallback(testAdmin, Callback{Action: ActionRefreshStats}); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if b.sessions.Get(testAdmin).SelectedPanel != "" {
		t.Fatal("dangling selection must be dropped")
	}
	joined := strings.Join(msgr.sent, "\n")
	if !strings.Contains(joined, "⚠️") {
		t.Fatalf("expected warning about missing panel, got %q", joined)
	}
}

func TestOwnerOnlySections(t *testing.T) {
	b, msgr, _ := newTestBot()

	if err := b.handleCallback(testAdmin, Callback{Action: ActionManageAdmins}); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if !strings.Contains(msgr.lastText(), "🚫") {
		t.Fatalf("non-owner reached admin management: %q", msgr.lastText())
	}

	if err := b.handleCallback(testOwner, Callback{Action: ActionManageAdmins}); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if strings.Contains(msgr.lastText(), "🚫") {
		t.Fatal("owner denied admin management")
	}
}

func TestAddAdminRejectsOwnerID(t *testing.T) {
	b, _, _ := newTestBot()
	b.sessions.SetStep(testOwner, StepAwaitingAddAdmin)

	if err := b.handleText(testOwner, fmt.Sprintf("%d", testOwner)); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	ok, _ := b.admins.Exists(testOwner)
	if ok {
		t.Fatal("owner must not be demoted to stored admin")
	}
	if b.sessions.Step(testOwner) != StepAwaitingAddAdmin {
		t.Fatal("rejection should keep the step for another try")
	}
}

func TestLogActivityDisabledByDefault(t *testing.T) {
	b, msgr, _ := newTestBot()
	b.logActivity("should go nowhere")
	if len(msgr.sent) != 0 {
		t.Fatalf("activity sent with channel unset: %v", msgr.sent)
	}

	b.settings.SetLogChannel(-100123)
	b.logActivity("audit line")
	if len(msgr.sent) != 1 || msgr.sentTo[0] != -100123 {
		t.Fatalf("activity not delivered to channel: %v -> %v", msgr.sent, msgr.sentTo)
	}
}

func TestUserInfoReportsPerPanelStats(t *testing.T) {
	var statsCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt32(&statsCalls, 1)
		json.NewEncoder(w).Encode(panel.Stats{Total: 42, Active: 30, Inactive: 5, Expired: 4, Limited: 3})
	}))
	defer srv.Close()

	b, msgr, panels := newTestBot()
	panels.panels = append(panels.panels, models.Panel{
		ChatID: testAdmin, Alias: "berlin", URL: srv.URL, Token: "tok",
	})

	b.sessions.SetStep(testOwner, StepAwaitingUserInfo)
	if err := b.handleText(testOwner, fmt.Sprintf("%d", testAdmin)); err != nil {
		t.Fatalf("handleText: %v", err)
	}

	report := msgr.lastText()
	if !strings.Contains(report, "berlin") {
		t.Fatalf("report misses the panel alias: %q", report)
	}
	if !strings.Contains(report, "کل: 42") || !strings.Contains(report, "فعال: 30") {
		t.Fatalf("report misses the panel stats: %q", report)
	}
	if got := atomic.LoadInt32(&statsCalls); got != 1 {
		t.Fatalf("stats endpoint hit %d times, want 1", got)
	}

	// A second lookup inside the cache TTL must not touch the panel again.
	b.sessions.SetStep(testOwner, StepAwaitingUserInfo)
	if err := b.handleText(testOwner, fmt.Sprintf("%d", testAdmin)); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if !strings.Contains(msgr.lastText(), "کل: 42") {
		t.Fatalf("cached report misses stats: %q", msgr.lastText())
	}
	if got := atomic.LoadInt32(&statsCalls); got != 1 {
		t.Fatalf("stats endpoint hit %d times after cached lookup, want 1", got)
	}
}
