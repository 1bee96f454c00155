package app

import "sync"

// Signal names a slice of dependent data that an operation may have changed.
// The bus is write-only from this package's perspective: the core fires
// notifications and never reads anything back.
type Signal int

const (
	SignalNoteTree Signal = iota
	SignalTaskList
	SignalTaskCategories
	SignalSingleNote
	SignalCalendarEvents
	SignalProfileFacts
	SignalChatSessionList
	SignalChatSessionDetail
)

func (s Signal) String() string {
	switch s {
	case SignalNoteTree:
		return "noteTree"
	case SignalTaskList:
		return "taskList"
	case SignalTaskCategories:
		return "taskCategories"
	case SignalSingleNote:
		return "singleNote"
	case SignalCalendarEvents:
		return "calendarEvents"
	case SignalProfileFacts:
		return "profileFacts"
	case SignalChatSessionList:
		return "chatSessionList"
	case SignalChatSessionDetail:
		return "chatSessionDetail"
	}
	return "unknown"
}

// Signals fans dependent-data-changed notifications out to subscribers
// (view refreshers, cache invalidators). Subscribers run synchronously on the
// firing goroutine and should only schedule work.
type Signals struct {
	mu   sync.Mutex
	subs []func(Signal)
}

func NewSignals() *Signals { return &Signals{} }

func (s *Signals) Subscribe(fn func(Signal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Signals) Fire(sig Signal) {
	s.mu.Lock()
	subs := make([]func(Signal), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(sig)
	}
}
