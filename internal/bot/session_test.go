package bot

import "testing"

func TestSessionDefaultsToIdle(t *testing.T) {
	m := NewSessionManager()
	if step := m.Step(42); step != StepIdle {
		t.Fatalf("new session step = %q, want idle", step)
	}
}

func TestSessionClearKeepsPanelSelection(t *testing.T) {
	m := NewSessionManager()
	s := m.Get(1)
	s.SelectedPanel = "frankfurt"
	s.Scratch.Username = "alice"
	m.SetStep(1, StepAwaitingDataLimit)

	m.Clear(1)

	s = m.Get(1)
	if s.Step != StepIdle {
		t.Fatalf("step after clear = %q", s.Step)
	}
	if s.Scratch.Username != "" {
		t.Fatal("scratch must be wiped on clear")
	}
	if s.SelectedPanel != "frankfurt" {
		t.Fatal("panel selection must survive clear")
	}
}

func TestEphemeralTakeDrains(t *testing.T) {
	m := NewSessionManager()
	m.RecordEphemeral(1, 10, 11)
	m.RecordEphemeral(1, 12)

	ids := m.TakeEphemeral(1)
	if len(ids) != 3 {
		t.Fatalf("TakeEphemeral returned %v", ids)
	}
	if again := m.TakeEphemeral(1); len(again) != 0 {
		t.Fatalf("second take should be empty, got %v", again)
	}
}

func TestEphemeralSurvivesClear(t *testing.T) {
	m := NewSessionManager()
	m.RecordEphemeral(1, 5)
	m.Clear(1)
	if ids := m.TakeEphemeral(1); len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("ephemeral set lost on clear: %v", ids)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewSessionManager()
	m.SetStep(1, StepAwaitingDataLimit)
	m.SetStep(2, StepAwaitingNote)

	if m.Step(1) != StepAwaitingDataLimit || m.Step(2) != StepAwaitingNote {
		t.Fatal("sessions leaked across chats")
	}
}
