package main

import (
	"github.com/kjoin/joinrun/internal/join"
	"github.com/kjoin/joinrun/internal/join/notifiers"
)

// Server is the HTTP front end over a DefinitionManager: schema documents go
// in, molecule emissions and soup diagnostics come out, and reaction-fired
// events stream to websocket and webhook subscribers.
type Server struct {
	manager     *join.DefinitionManager
	notifierMgr *join.NotificationManager
	wsNotifier  *notifiers.WebSocketNotifier
	snapshotDir string
	logger      join.Logger
}

// NewServer creates a server with a websocket notifier always registered and
// an optional webhook notifier when webhookURL is non-empty.
func NewServer(logger join.Logger, webhookURL string) *Server {
	notifierMgr := join.NewNotificationManager()
	ws := notifiers.NewWebSocketNotifier("ws")
	_ = notifierMgr.RegisterNotifier(ws)

	notifierIDs := []string{ws.ID()}
	if webhookURL != "" {
		hook := notifiers.NewWebhookNotifier("webhook", webhookURL)
		_ = notifierMgr.RegisterNotifier(hook)
		notifierIDs = append(notifierIDs, hook.ID())
	}

	manager := join.NewDefinitionManagerWithLogger(logger)
	manager.SetNotifications(notifierMgr, notifierIDs...)

	return &Server{
		manager:     manager,
		notifierMgr: notifierMgr,
		wsNotifier:  ws,
		logger:      logger,
	}
}

// SetSnapshotDir sets the directory snapshot files are written to.
func (s *Server) SetSnapshotDir(dir string) {
	s.snapshotDir = dir
}

// Close shuts down every definition and the notification fan-out.
func (s *Server) Close() {
	s.manager.Close()
	_ = s.notifierMgr.Close()
}
