package session

import (
	"testing"

	"sansfit/adapters/fitter"
	"sansfit/domain/sans"
)

func TestFitterNotInitialized(t *testing.T) {
	s := NewStore()
	if s.HasFitter() {
		t.Error("fresh store should have no fitter")
	}
	if _, err := s.Fitter(); err == nil {
		t.Fatal("expected not-initialized error")
	}

	s.SetFitter(fitter.New())
	if _, err := s.Fitter(); err != nil {
		t.Fatalf("Fitter after SetFitter: %v", err)
	}
}

func TestFitStatusValidation(t *testing.T) {
	s := NewStore()
	if s.FitStatus() != sans.FitIdle {
		t.Errorf("initial status = %v, want idle", s.FitStatus())
	}
	for _, valid := range []string{"idle", "queued", "running", "completed", "failed"} {
		if err := s.SetFitStatus(valid); err != nil {
			t.Errorf("SetFitStatus(%q): %v", valid, err)
		}
	}
	if err := s.SetFitStatus("exploded"); err == nil {
		t.Error("expected error for unknown status")
	}
	if s.FitStatus() != sans.FitFailed {
		t.Errorf("rejected status overwrote the last valid one: %v", s.FitStatus())
	}
}

func TestClearParameterWidgetsLeavesOtherStateAlone(t *testing.T) {
	s := NewStore()
	s.SetFitter(fitter.New())
	s.SetDataLoaded(true)
	s.SetCurrentModelName("sphere")
	s.SetParamWidget("radius", ParamWidget{Value: 50, Min: 1, Max: 1000, Vary: true})
	s.SetPDWidget("radius", PDWidget{Width: 0.1, N: 35, Distribution: sans.DistGaussian})

	s.ClearParameterWidgets()

	if len(s.ParamWidgets()) != 0 || len(s.PDWidgets()) != 0 {
		t.Error("widget mirrors not emptied")
	}
	if !s.HasFitter() || !s.DataLoaded() || s.CurrentModelName() != "sphere" {
		t.Error("clear touched state outside the widget mirrors")
	}
}

func TestChatHistoryLifecycle(t *testing.T) {
	s := NewStore()
	if got := s.ChatHistory(); len(got) != 0 {
		t.Fatalf("fresh history = %v", got)
	}
	s.AppendChatMessage(sans.ChatMessage{Role: "user", Content: "hello"})
	s.AppendChatMessage(sans.ChatMessage{Role: "assistant", Content: "hi"})
	if got := s.ChatHistory(); len(got) != 2 || got[0].Content != "hello" {
		t.Fatalf("history = %v", got)
	}

	// Mutating the returned slice must not affect the store.
	leak := s.ChatHistory()
	leak[0].Content = "tampered"
	if s.ChatHistory()[0].Content != "hello" {
		t.Error("ChatHistory returned shared backing storage")
	}

	s.ClearChatHistory()
	if len(s.ChatHistory()) != 0 {
		t.Error("history survived clear")
	}
}

func TestConsumeNeedsRerun(t *testing.T) {
	s := NewStore()
	s.SetNeedsRerun(true)
	if !s.ConsumeNeedsRerun() {
		t.Error("first consume should see the flag")
	}
	if s.ConsumeNeedsRerun() {
		t.Error("second consume should see it cleared")
	}
}

func TestManagerCreatesPerSessionStores(t *testing.T) {
	m := NewManager()
	a := m.NewSessionID()
	b := m.NewSessionID()
	if a == b {
		t.Fatal("session IDs collide")
	}

	sa := m.Get(a)
	if sa != m.Get(a) {
		t.Error("same ID should return same store")
	}
	if sa == m.Get(b) {
		t.Error("different IDs share a store")
	}
	if !sa.HasFitter() {
		t.Error("manager should initialize the fitter")
	}

	m.Drop(a)
	if sa == m.Get(a) {
		t.Error("dropped store still returned")
	}
}
