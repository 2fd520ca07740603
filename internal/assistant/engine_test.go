package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/fallback"
	"github.com/ashureev/veltrix/internal/intent"
	"github.com/ashureev/veltrix/internal/session"
	"github.com/ashureev/veltrix/internal/store"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	history []string
	names   []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, history, userName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, history)
	f.names = append(f.names, userName)
	return f.reply, f.err
}

type fixture struct {
	engine   *Engine
	sessions *session.MemoryStore
	repo     *store.SQLiteStore
	gen      *fakeGenerator
}

func newEngineFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	products := []*domain.Product{
		{ID: "k1", Name: "Apex Keyboard", Category: "Keyboards", Price: 7999, Stock: 3},
		{ID: "m1", Name: "Viper Mouse", Category: "Mice", Price: 2999, Stock: 5},
		{ID: "m2", Name: "Phantom Mouse", Category: "Mice", Price: 4499, Stock: 2},
		{ID: "c1", Name: "Titan Chair", Category: "Chairs", Price: 18999, Stock: 0},
	}
	for _, p := range products {
		if err := repo.UpsertProduct(context.Background(), p); err != nil {
			t.Fatalf("UpsertProduct failed: %v", err)
		}
	}

	sessions := session.NewMemoryStore()
	gen := &fakeGenerator{reply: "Plenty of options out there."}
	engine := NewEngine(Deps{Sessions: sessions, Repo: repo, Generator: gen})
	return &fixture{engine: engine, sessions: sessions, repo: repo, gen: gen}
}

func (f *fixture) say(t *testing.T, userID, message string) *Response {
	t.Helper()
	resp, err := f.engine.Reply(context.Background(), Request{UserID: userID, Role: domain.RoleCustomer, Message: message})
	if err != nil {
		t.Fatalf("Reply(%q) failed: %v", message, err)
	}
	return resp
}

func (f *fixture) state(t *testing.T, userID string) *session.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return s
}

func TestReplyRejectsBlankMessage(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	for _, msg := range []string{"", "   \n"} {
		_, err := f.engine.Reply(context.Background(), Request{UserID: "u1", Message: msg})
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %q, got %v", msg, err)
		}
	}
	if f.sessions.Len() != 0 {
		t.Fatal("blank message must not touch session state")
	}
}

func TestGreetingUsesRememberedName(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	resp := f.say(t, "u1", "hi")
	if resp.Intent == nil || *resp.Intent != intent.Greeting {
		t.Fatalf("expected GREETING, got %+v", resp.Intent)
	}
	if resp.Reply != "Veltrix online. State your objective, gamer." {
		t.Fatalf("unexpected generic greeting: %q", resp.Reply)
	}

	resp = f.say(t, "u1", "my name is Arjun")
	if resp.Reply != "Noted, Arjun. How can I assist you today?" {
		t.Fatalf("unexpected name reply: %q", resp.Reply)
	}

	resp = f.say(t, "u1", "hey")
	if resp.Reply != "Welcome back, Arjun. State your objective." {
		t.Fatalf("unexpected personal greeting: %q", resp.Reply)
	}
}

func TestGuidedPurchaseFlow(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	resp := f.say(t, "u1", "browse")
	if resp.Intent != nil || resp.Confidence != nil {
		t.Fatalf("flow replies carry no intent, got %+v", resp)
	}
	if !strings.Contains(resp.Reply, "1. Keyboards\n2. Mice\n") {
		t.Fatalf("expected category list without Chairs, got %q", resp.Reply)
	}

	resp = f.say(t, "u1", "2")
	if !strings.HasPrefix(resp.Reply, "Mice available:") {
		t.Fatalf("expected Mice product list, got %q", resp.Reply)
	}

	resp = f.say(t, "u1", "2")
	if !strings.Contains(resp.Reply, "🎮 Viper Mouse") {
		t.Fatalf("expected Viper Mouse selection, got %q", resp.Reply)
	}
	if got := f.state(t, "u1").State; got != session.StateAwaitingConfirmation {
		t.Fatalf("expected confirmation state, got %s", got)
	}

	resp = f.say(t, "u1", "add it")
	if resp.Reply != "✅ Viper Mouse added to cart successfully!" {
		t.Fatalf("unexpected confirmation reply: %q", resp.Reply)
	}
	if got := f.state(t, "u1").State; got != session.StateIdle {
		t.Fatalf("expected idle after confirmation, got %s", got)
	}
}

func TestEscapeHatchRoutesNewQuery(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	f.say(t, "u1", "browse")
	resp := f.say(t, "u1", "track my order")
	if resp.Intent == nil || *resp.Intent != intent.DeliveryTracking {
		t.Fatalf("expected DELIVERY_TRACKING after escape, got %+v", resp)
	}
	if got := f.state(t, "u1").State; got != session.StateIdle {
		t.Fatalf("expected idle session after escape, got %s", got)
	}
}

func TestRecommendationEntersProductSelection(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	resp := f.say(t, "u1", "viper mouse")
	if resp.Intent == nil || *resp.Intent != intent.ProductRecommendation {
		t.Fatalf("expected PRODUCT_RECOMMENDATION, got %+v", resp)
	}
	if !strings.HasPrefix(resp.Reply, "🎯 Gear Scan Complete.\n\n") {
		t.Fatalf("expected composed header, got %q", resp.Reply)
	}

	resp = f.say(t, "u1", "1")
	if !strings.Contains(resp.Reply, "🎮 Viper Mouse") {
		t.Fatalf("expected selection from recommendation, got %q", resp.Reply)
	}
}

func TestFallbackGetsHistoryAndName(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	f.say(t, "u1", "call me Riya")
	resp := f.say(t, "u1", "tell me a joke")
	if resp.Intent == nil || *resp.Intent != intent.GeneralAI {
		t.Fatalf("expected GENERAL_AI, got %+v", resp)
	}
	if resp.Reply != "🧠 Veltrix, Riya.\n\nPlenty of options out there." {
		t.Fatalf("unexpected composed fallback reply: %q", resp.Reply)
	}

	if len(f.gen.history) != 1 {
		t.Fatalf("expected one generator call, got %d", len(f.gen.history))
	}
	want := "User: call me Riya\nVeltrix: Noted, Riya. How can I assist you today?\nUser: tell me a joke"
	if f.gen.history[0] != want {
		t.Fatalf("unexpected context:\n%s", f.gen.history[0])
	}
	if f.gen.names[0] != "Riya" {
		t.Fatalf("expected name Riya, got %q", f.gen.names[0])
	}

	s := f.state(t, "u1")
	if last := s.History[len(s.History)-1]; last.Speaker != domain.SpeakerBot || last.Text != "Plenty of options out there." {
		t.Fatalf("expected raw bot reply in history, got %+v", last)
	}
}

func TestFallbackFailureIsAnError(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)
	f.gen.err = fallback.ErrUnavailable

	_, err := f.engine.Reply(context.Background(), Request{UserID: "u1", Message: "tell me a joke"})
	if !errors.Is(err, fallback.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	log, err := f.engine.Transcript(context.Background(), "u1")
	if err != nil || len(log) != 0 {
		t.Fatalf("failed turn must not be archived, got %d, %v", len(log), err)
	}
}

func TestTurnsAreArchived(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	f.say(t, "u1", "hi")
	f.say(t, "u1", "browse")
	f.say(t, "u1", "9")

	log, err := f.engine.Transcript(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(log) != 6 {
		t.Fatalf("expected 3 archived pairs, got %d entries", len(log))
	}
	if log[4].Text != "9" || !strings.HasPrefix(log[5].Text, "Invalid selection.") {
		t.Fatalf("expected reprompt to be archived, got %+v", log[4:])
	}
}

func TestClearSessionForgetsName(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	f.say(t, "u1", "my name is Kai")
	if err := f.engine.ClearSession(context.Background(), "u1"); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if resp := f.say(t, "u1", "hi"); resp.Reply != "Veltrix online. State your objective, gamer." {
		t.Fatalf("expected generic greeting after clear, got %q", resp.Reply)
	}
}

func TestConcurrentTurnsForOneUserAreSerialized(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	const turns = 10
	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Reply(context.Background(), Request{UserID: "u1", Message: fmt.Sprintf("hello %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Reply failed: %v", err)
		}
	}

	if got := len(f.state(t, "u1").History); got != session.HistoryLimit {
		t.Fatalf("expected %d history entries, got %d", session.HistoryLimit, got)
	}
	log, err := f.engine.Transcript(context.Background(), "u1")
	if err != nil || len(log) != 2*turns {
		t.Fatalf("expected %d transcript entries, got %d, %v", 2*turns, len(log), err)
	}
}
