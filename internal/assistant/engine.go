package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/veltrix/internal/dialogue"
	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/fallback"
	"github.com/ashureev/veltrix/internal/intent"
	"github.com/ashureev/veltrix/internal/metrics"
	"github.com/ashureev/veltrix/internal/persona"
	"github.com/ashureev/veltrix/internal/session"
	"github.com/ashureev/veltrix/internal/store"
	"github.com/ashureev/veltrix/internal/support"
	"github.com/ashureev/veltrix/internal/transcript"
)

// ErrEmptyMessage is returned for a blank message before any state is read.
var ErrEmptyMessage = errors.New("message is required")

// Engine executes chat turns. Turns for the same user are serialized on the
// session store's turn lock; different users run in parallel.
type Engine struct {
	sessions   session.Store
	machine    *dialogue.Machine
	classifier *intent.Classifier
	desk       *support.Desk
	generator  fallback.Generator
	archiver   *transcript.Archiver
	metrics    *metrics.Metrics
}

// Deps are the collaborators of an Engine. Metrics may be nil; a nil
// Generator is treated as unavailable.
type Deps struct {
	Sessions   session.Store
	Repo       store.Repository
	Generator  fallback.Generator
	Classifier *intent.Classifier
	Metrics    *metrics.Metrics
}

// NewEngine wires an engine from its collaborators.
func NewEngine(d Deps) *Engine {
	gen := d.Generator
	if gen == nil {
		gen = fallback.Unavailable{}
	}
	classifier := d.Classifier
	if classifier == nil {
		classifier = intent.NewClassifier(nil)
	}
	return &Engine{
		sessions:   d.Sessions,
		machine:    dialogue.NewMachine(d.Sessions, d.Repo).WithMetrics(d.Metrics),
		classifier: classifier,
		desk:       support.NewDesk(d.Repo, d.Repo, d.Sessions),
		generator:  gen,
		archiver:   transcript.NewArchiver(d.Repo, d.Metrics),
		metrics:    d.Metrics,
	}
}

// Reply runs one turn.
func (e *Engine) Reply(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	start := time.Now()

	unlock, err := e.sessions.Lock(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	s, err := e.machine.Enter(ctx, req.UserID, req.Message)
	if err != nil {
		return nil, err
	}

	flow, err := e.machine.Handle(ctx, req.UserID, s, req.Message)
	if err != nil {
		return nil, fmt.Errorf("guided flow: %w", err)
	}
	if flow.Handled {
		e.archiver.Archive(ctx, req.UserID, req.Message, flow.Text)
		e.metrics.ObserveTurn(metrics.PathFlow, "", time.Since(start))
		return flowResponse(flow.Text), nil
	}

	result := e.classifier.Classify(req.Message)
	userName := s.UserName

	if err := e.remember(ctx, req.UserID, s, domain.SpeakerUser, req.Message); err != nil {
		return nil, err
	}

	reply, err := e.route(ctx, req, s, result.Label)
	if err != nil {
		return nil, err
	}

	if err := e.remember(ctx, req.UserID, s, domain.SpeakerBot, reply); err != nil {
		return nil, err
	}

	final := persona.Compose(result.Label, reply, userName)
	e.archiver.Archive(ctx, req.UserID, req.Message, final)
	e.metrics.ObserveTurn(metrics.PathClassified, string(result.Label), time.Since(start))

	slog.Debug("Chat turn routed", "user_id", req.UserID, "intent", result.Label)
	return classifiedResponse(result, final), nil
}

// remember appends to the stored history and mirrors it onto s so the
// fallback context includes the current message.
func (e *Engine) remember(ctx context.Context, userID string, s *session.Session, speaker domain.Speaker, text string) error {
	if err := e.sessions.Update(ctx, userID, func(stored *session.Session) {
		stored.Remember(speaker, text)
	}); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	s.Remember(speaker, text)
	return nil
}

func (e *Engine) route(ctx context.Context, req Request, s *session.Session, label intent.Label) (string, error) {
	var (
		reply string
		err   error
	)
	switch label {
	case intent.Greeting:
		if s.UserName != "" {
			return "Welcome back, " + s.UserName + ". State your objective.", nil
		}
		return "Veltrix online. State your objective, gamer.", nil
	case intent.SetName:
		return e.setName(ctx, req)
	case intent.LatestOrder:
		reply, err = e.desk.LatestOrder(ctx, req.UserID)
	case intent.RecentOrders:
		reply, err = e.desk.RecentOrders(ctx, req.UserID)
	case intent.DeliveryTracking:
		reply, err = e.desk.DeliveryStatus(ctx, req.UserID)
	case intent.RefundPolicy:
		reply = e.desk.RefundPolicy()
	case intent.CancelOrder:
		reply, err = e.desk.CancelLatestOrder(ctx, req.UserID)
	case intent.VendorStats:
		reply, err = e.desk.VendorStats(ctx, req.UserID, req.Role)
	case intent.ProductRecommendation:
		reply, err = e.desk.Recommend(ctx, req.UserID, req.Message)
	default:
		reply, err = e.generator.Generate(ctx, req.Message, s.HistoryContext(), s.UserName)
		if err != nil {
			e.metrics.GeneratorError()
			return "", fmt.Errorf("fallback generator: %w", err)
		}
		return reply, nil
	}
	return reply, err
}

func (e *Engine) setName(ctx context.Context, req Request) (string, error) {
	name, ok := intent.ExtractName(req.Message)
	if !ok {
		return `Couldn't catch that. Try: "My name is [name]".`, nil
	}
	if err := e.sessions.Update(ctx, req.UserID, func(s *session.Session) {
		s.UserName = name
	}); err != nil {
		return "", fmt.Errorf("store name: %w", err)
	}
	return "Noted, " + name + ". How can I assist you today?", nil
}

// ClearSession removes the user's dialogue session entirely.
func (e *Engine) ClearSession(ctx context.Context, userID string) error {
	unlock, err := e.sessions.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer unlock()
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Transcript returns the user's archived conversation, oldest first.
func (e *Engine) Transcript(ctx context.Context, userID string) ([]domain.Message, error) {
	return e.archiver.History(ctx, userID)
}
