package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// purgePanel serves paged users and records deletions. Like a real panel,
// a deleted user disappears from the listing, shifting later users toward
// lower offsets.
type purgePanel struct {
	mu          sync.Mutex
	users       []User
	deleted     []string
	failDelete  map[string]bool
	failOffsets map[int]bool
}

func (f *purgePanel) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		if f.failOffsets[offset] {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		end := offset + limit
		if offset > len(f.users) {
			offset = len(f.users)
		}
		if end > len(f.users) {
			end = len(f.users)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"users": f.users[offset:end]})
	})
	mux.HandleFunc("/api/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		username := strings.TrimPrefix(r.URL.Path, "/api/user/")
		if f.failDelete[username] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.mu.Lock()
		for i := range f.users {
			if f.users[i].Username == username {
				f.users = append(f.users[:i], f.users[i+1:]...)
				break
			}
		}
		f.deleted = append(f.deleted, username)
		f.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	return mux
}

func (f *purgePanel) remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func TestPurgeDeletesOnlyMatching(t *testing.T) {
	now := time.Now().Unix()
	fake := &purgePanel{
		users: []User{
			{Username: "expired1", Expire: now - 100},
			{Username: "alive", Expire: now + 10000},
			{Username: "forever"}, // Expire 0 = never
			{Username: "expired2", Expire: now - 1},
			{Username: "limited", DataLimit: 10, UsedTraffic: 10},
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 100, ExpiredUsers(now), zap.NewNop())

	if report.Partial || report.Err != nil {
		t.Fatalf("unexpected partial report: %+v", report)
	}
	if report.Deleted != 2 {
		t.Fatalf("Deleted = %d, want 2", report.Deleted)
	}
	want := []string{"expired1", "expired2"}
	if len(fake.deleted) != 2 || fake.deleted[0] != want[0] || fake.deleted[1] != want[1] {
		t.Fatalf("deleted = %v, want %v", fake.deleted, want)
	}
	if len(report.Names) != 2 {
		t.Fatalf("Names = %v", report.Names)
	}
}

func TestPurgeExhaustedPredicate(t *testing.T) {
	fake := &purgePanel{
		users: []User{
			{Username: "unlimited", DataLimit: 0, UsedTraffic: 1 << 40},
			{Username: "full", DataLimit: 100, UsedTraffic: 100},
			{Username: "over", DataLimit: 100, UsedTraffic: 150},
			{Username: "under", DataLimit: 100, UsedTraffic: 99},
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 100, ExhaustedUsers(), zap.NewNop())

	if report.Deleted != 2 {
		t.Fatalf("Deleted = %d, want 2 (full and over)", report.Deleted)
	}
	for _, name := range fake.deleted {
		if name == "unlimited" || name == "under" {
			t.Fatalf("deleted non-matching user %s", name)
		}
	}
}

func TestPurgeSkipsFailedDeletes(t *testing.T) {
	now := time.Now().Unix()
	fake := &purgePanel{
		users: []User{
			{Username: "a", Expire: now - 1},
			{Username: "b", Expire: now - 1},
			{Username: "c", Expire: now - 1},
		},
		failDelete: map[string]bool{"b": true},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 100, ExpiredUsers(now), zap.NewNop())

	if report.Deleted != 2 || report.Skipped != 1 {
		t.Fatalf("report = %+v, want 2 deleted, 1 skipped", report)
	}
	if report.Partial {
		t.Fatal("single delete failures must not mark the run partial")
	}
}

func TestPurgePartialOnPageFailure(t *testing.T) {
	now := time.Now().Unix()
	users := make([]User, 0, 6)
	for i := 0; i < 6; i++ {
		users = append(users, User{Username: fmt.Sprintf("u%d", i), Expire: now - 1})
	}
	fake := &purgePanel{
		users:       users,
		failOffsets: map[int]bool{3: true},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 3, ExpiredUsers(now), zap.NewNop())

	if !report.Partial || report.Err == nil {
		t.Fatalf("expected partial report with error, got %+v", report)
	}
	if report.Deleted != 0 {
		t.Fatalf("Deleted = %d, want 0: nothing may be deleted before the full listing succeeds", report.Deleted)
	}
	if len(fake.deleted) != 0 {
		t.Fatalf("panel saw deletes %v before the listing completed", fake.deleted)
	}
}

// A panel's listing shrinks as users are deleted. If deletion ran while
// paginating, advancing the offset would hop over users shifted into
// already-visited positions and leave part of the batch behind.
func TestPurgeCoversShrinkingListing(t *testing.T) {
	now := time.Now().Unix()
	users := make([]User, 0, 150)
	for i := 0; i < 150; i++ {
		users = append(users, User{Username: fmt.Sprintf("u%03d", i), Expire: now - 1})
	}
	fake := &purgePanel{users: users}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 100, ExpiredUsers(now), zap.NewNop())

	if report.Partial || report.Err != nil {
		t.Fatalf("unexpected partial report: %+v", report)
	}
	if report.Deleted != 150 {
		t.Fatalf("Deleted = %d, want all 150", report.Deleted)
	}
	if left := fake.remaining(); left != 0 {
		t.Fatalf("%d users left on the panel after a full purge", left)
	}
}

func TestPurgeNameSampleCap(t *testing.T) {
	now := time.Now().Unix()
	users := make([]User, 0, 15)
	for i := 0; i < 15; i++ {
		users = append(users, User{Username: fmt.Sprintf("u%02d", i), Expire: now - 1})
	}
	fake := &purgePanel{users: users}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "tok", 5*time.Second)
	report := Purge(context.Background(), client, 100, ExpiredUsers(now), zap.NewNop())

	if report.Deleted != 15 {
		t.Fatalf("Deleted = %d, want 15", report.Deleted)
	}
	if len(report.Names) != purgeNameSample {
		t.Fatalf("Names holds %d entries, want %d", len(report.Names), purgeNameSample)
	}
}
