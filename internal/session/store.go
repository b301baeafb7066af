package session

import (
	"sync"

	"sansfit/adapters/fitter"
	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// ParamWidget mirrors one parameter row of the parameter table. The
// fitter owns the real values; the widget entry is what the next render
// shows, so tool-driven changes must write through here too.
type ParamWidget struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Vary  bool    `json:"vary"`
}

// PDWidget mirrors one polydispersity row.
type PDWidget struct {
	Width        float64               `json:"width"`
	N            int                   `json:"n"`
	Distribution sans.DistributionType `json:"distribution"`
	Vary         bool                  `json:"vary"`
}

// Store is the single source of truth for one browser session: the
// fitter, the lifecycle flags, the widget mirrors and the chat
// transcript. It is the only component non-UI code (tool handlers) may
// use to read or write session state. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	fitter *fitter.Fitter

	dataLoaded    bool
	modelSelected bool
	fitCompleted  bool
	toolsEnabled  bool
	needsRerun    bool

	currentModel string
	fitStatus    sans.FitStatus
	fitError     string
	fitResult    *sans.FitResult

	chat []sans.ChatMessage

	apiKey string

	paramWidgets map[string]ParamWidget
	pdWidgets    map[string]PDWidget
	pdEnabled    bool
}

// NewStore creates an empty session store with an idle fit status.
func NewStore() *Store {
	return &Store{
		fitStatus:    sans.FitIdle,
		paramWidgets: make(map[string]ParamWidget),
		pdWidgets:    make(map[string]PDWidget),
	}
}

// SetFitter installs the session's fitter.
func (s *Store) SetFitter(f *fitter.Fitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitter = f
}

// Fitter returns the session's fitter, or a not-initialized error if the
// session has not been set up yet. Callers surface that error and ask
// the user to reload.
func (s *Store) Fitter() (*fitter.Fitter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fitter == nil {
		return nil, errors.NotInitialized("fitter")
	}
	return s.fitter, nil
}

func (s *Store) HasFitter() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitter != nil
}

func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitter != nil && s.fitter.HasData()
}

func (s *Store) HasModel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitter != nil && s.fitter.HasModel()
}

func (s *Store) SetDataLoaded(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataLoaded = v
}

func (s *Store) DataLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataLoaded
}

func (s *Store) SetCurrentModelName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentModel = name
}

func (s *Store) CurrentModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

func (s *Store) SetModelSelected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelSelected = v
}

func (s *Store) ModelSelected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelSelected
}

func (s *Store) SetFitCompleted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitCompleted = v
}

func (s *Store) FitCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitCompleted
}

func (s *Store) SetFitResult(r *sans.FitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitResult = r
}

func (s *Store) FitResult() *sans.FitResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitResult
}

func (s *Store) SetToolsEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolsEnabled = v
}

// ToolsEnabled gates every mutating AI tool.
func (s *Store) ToolsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolsEnabled
}

// SetNeedsRerun is the cooperative signal telling the render loop that
// out-of-band (tool-driven) mutation happened and the page must redraw.
func (s *Store) SetNeedsRerun(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsRerun = v
}

func (s *Store) NeedsRerun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsRerun
}

// ConsumeNeedsRerun reads and clears the rerun flag in one step; the
// render loop calls this at the top of each pass.
func (s *Store) ConsumeNeedsRerun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.needsRerun
	s.needsRerun = false
	return v
}

// SetFitStatus validates and records the fit lifecycle status.
func (s *Store) SetFitStatus(status string) error {
	parsed, err := sans.ParseFitStatus(status)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitStatus = parsed
	return nil
}

func (s *Store) FitStatus() sans.FitStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitStatus
}

func (s *Store) SetFitError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitError = msg
}

func (s *Store) FitError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitError
}

// ClearParameterWidgets drops every parameter and polydispersity widget
// entry and nothing else. Must run before loading a new model's
// parameters so stale rows never render under new parameter names.
func (s *Store) ClearParameterWidgets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramWidgets = make(map[string]ParamWidget)
	s.pdWidgets = make(map[string]PDWidget)
}

func (s *Store) SetParamWidget(name string, w ParamWidget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramWidgets[name] = w
}

func (s *Store) ParamWidget(name string) (ParamWidget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.paramWidgets[name]
	return w, ok
}

// ParamWidgets returns a snapshot of the widget mirror.
func (s *Store) ParamWidgets() map[string]ParamWidget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ParamWidget, len(s.paramWidgets))
	for k, v := range s.paramWidgets {
		out[k] = v
	}
	return out
}

func (s *Store) SetPDWidget(name string, w PDWidget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pdWidgets[name] = w
}

func (s *Store) PDWidget(name string) (PDWidget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.pdWidgets[name]
	return w, ok
}

func (s *Store) PDWidgets() map[string]PDWidget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PDWidget, len(s.pdWidgets))
	for k, v := range s.pdWidgets {
		out[k] = v
	}
	return out
}

func (s *Store) SetPDEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pdEnabled = v
}

func (s *Store) PDEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pdEnabled
}

// ChatHistory returns a copy of the transcript, lazily treating a never
// written history as empty.
func (s *Store) ChatHistory() []sans.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sans.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

func (s *Store) AppendChatMessage(msg sans.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, msg)
}

func (s *Store) ClearChatHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = nil
}

func (s *Store) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}
