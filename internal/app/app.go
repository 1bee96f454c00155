package app

import "go.uber.org/zap"

// Application wires the shared collaborators once at startup and passes them
// down explicitly. Nothing in here is ambient or global; tests build their
// own Application with a nop logger and a mock client.
type Application struct {
	Config  Config
	Logger  *zap.Logger
	Client  *AgentClient
	Signals *Signals
	Cache   *SessionCache
}

func NewApplication(cfg Config, mockMode bool) *Application {
	logger := NewLogger("")
	var client *AgentClient
	if mockMode {
		client = NewMockAgentClient(logger)
	} else {
		client = NewAgentClient(cfg, logger)
	}
	return &Application{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Signals: NewSignals(),
		Cache:   NewSessionCache(""),
	}
}

// Close flushes the logger. Called on the way out of main.
func (a *Application) Close() {
	_ = a.Logger.Sync()
}
