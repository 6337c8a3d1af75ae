package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestMemoryDeduper(t *testing.T) {
	d := newMemoryDeduper(time.Minute)

	dup, err := d.Duplicate(context.Background(), 1001)
	if err != nil || dup {
		t.Fatalf("first sighting reported as duplicate (dup=%v err=%v)", dup, err)
	}

	dup, err = d.Duplicate(context.Background(), 1001)
	if err != nil || !dup {
		t.Fatalf("second sighting not reported as duplicate (dup=%v err=%v)", dup, err)
	}

	dup, _ = d.Duplicate(context.Background(), 1002)
	if dup {
		t.Fatal("distinct update ID flagged as duplicate")
	}
}

func TestDropDuplicateUpdates(t *testing.T) {
	e := echo.New()
	handled := 0
	h := DropDuplicateUpdates(newMemoryDeduper(time.Minute))(func(c echo.Context) error {
		handled++
		return c.NoContent(http.StatusOK)
	})

	deliver := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if err := h(c); err != nil {
			t.Fatalf("handler: %v", err)
		}
		return rec.Code
	}

	if code := deliver(`{"update_id":77}`); code != http.StatusOK {
		t.Fatalf("first delivery status %d", code)
	}
	if handled != 1 {
		t.Fatalf("handled = %d after first delivery", handled)
	}

	// Retry of the same update: 200 back to Telegram, handler untouched.
	if code := deliver(`{"update_id":77}`); code != http.StatusOK {
		t.Fatalf("duplicate delivery status %d", code)
	}
	if handled != 1 {
		t.Fatalf("duplicate reached the handler (handled = %d)", handled)
	}

	if deliver(`{"update_id":78}`); handled != 2 {
		t.Fatalf("fresh update dropped (handled = %d)", handled)
	}
}

func TestUnparseableBodyPassesThrough(t *testing.T) {
	e := echo.New()
	handled := 0
	h := DropDuplicateUpdates(newMemoryDeduper(time.Minute))(func(c echo.Context) error {
		handled++
		return c.NoContent(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if handled != 2 {
		t.Fatalf("unparseable bodies must always pass through, handled = %d", handled)
	}
}
