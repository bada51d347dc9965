package bootstrap

import (
	"context"
	"log"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/kpi"

	pktNats "rag-chat-be/pkg/nats"

	"gorm.io/gorm"
)

const (
	sessionsQueue = "session-handlers"
	kpiDurable    = "kpi-recorder"
)

// SessionHandlerContainer wires the session-store process: request/reply on postgres plus KPI recording.
type SessionHandlerContainer struct {
	Handler    service.ISessionHandlerService
	Responder  *pktNats.Responder
	Subscriber *pktNats.Subscriber
	Recorder   *kpi.Recorder
	Logger     logger.ILogger

	subject string
	closers []func() error
}

func NewSessionHandlerContainer(db *gorm.DB, cfg *config.Config) (*SessionHandlerContainer, error) {
	c := &SessionHandlerContainer{subject: cfg.Sessions.Subject}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c.Logger = sysLogger
	c.Handler = service.NewSessionHandlerService(unitofwork.NewRepositoryFactory(db), sysLogger)

	nc, err := pktNats.Connect(cfg.App.NatsURL)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error { nc.Close(); return nil })
	c.Responder = pktNats.NewResponder(nc)

	sub, err := pktNats.NewSubscriber(nc)
	if err != nil {
		log.Printf("[WARN] JetStream unavailable, KPI recording disabled: %v", err)
	} else {
		c.Subscriber = sub
	}

	rdb := NewRedisClient(cfg.App.RedisURL)
	c.closers = append(c.closers, rdb.Close)
	c.Recorder = kpi.NewRecorder(rdb)

	return c, nil
}

// Start serves store requests and, when JetStream is up, records KPIs from turn events.
func (c *SessionHandlerContainer) Start(ctx context.Context) error {
	if err := c.Responder.Serve(c.subject, sessionsQueue, c.Handler.Handle); err != nil {
		return err
	}
	if c.Subscriber == nil {
		return nil
	}
	subject := pktNats.Subject(events.TypeTurnRecorded)
	if err := c.Subscriber.Subscribe(ctx, subject, kpiDurable, c.Recorder.HandleEvent); err != nil {
		c.Logger.Warn("SessionHandler", "KPI subscription failed", map[string]interface{}{"error": err})
	}
	return nil
}

func (c *SessionHandlerContainer) Close() {
	c.Responder.Drain()
	if c.Subscriber != nil {
		c.Subscriber.Stop()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("[WARN] Shutdown step failed: %v", err)
		}
	}
	_ = c.Logger.Sync()
}
