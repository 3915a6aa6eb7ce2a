package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

type fakeGateway struct {
	mu sync.Mutex

	html        string
	pageErr     error
	dayIDs      map[string]string
	sessions    []registration.Session
	sessionsErr error
	captchaErr  error

	// responses are consumed per submission; the last one repeats.
	responses []string

	captchaFetches int
	downloads      int
	submits        []map[string]string
}

func (g *fakeGateway) FetchFormPage(context.Context) (string, error) {
	if g.pageErr != nil {
		return "", g.pageErr
	}
	return g.html, nil
}

func (g *fakeGateway) SalesDayLabels(string) []string {
	labels := make([]string, 0, len(g.dayIDs))
	for label := range g.dayIDs {
		labels = append(labels, label)
	}
	return labels
}

func (g *fakeGateway) MapLabelToID(_, label string) (string, bool) {
	id, ok := g.dayIDs[label]
	return id, ok
}

func (g *fakeGateway) LoadSessions(context.Context, string) ([]registration.Session, error) {
	if g.sessionsErr != nil {
		return nil, g.sessionsErr
	}
	return g.sessions, nil
}

func (g *fakeGateway) FetchCaptcha(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captchaErr != nil {
		return "", g.captchaErr
	}
	g.captchaFetches++
	return "https://site.example/captcha.png", nil
}

func (g *fakeGateway) DownloadImage(context.Context, string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downloads++
	return []byte("image-bytes"), nil
}

func (g *fakeGateway) SubmitRegistration(_ context.Context, fields map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits = append(g.submits, fields)
	if len(g.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return resp, nil
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

type fakeSolver struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   int
}

func (s *fakeSolver) Solve(context.Context, []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "", registration.ErrNoAnswer
	}
	answer := s.answers[0]
	if len(s.answers) > 1 {
		s.answers = s.answers[1:]
	}
	return answer, nil
}

type sentImage struct {
	channelID int64
	caption   string
	messageID int
}

type fakeMessenger struct {
	mu     sync.Mutex
	texts  []string
	images []sentImage
	nextID int
}

func (m *fakeMessenger) SendText(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMessenger) SendImage(_ context.Context, channelID int64, _ []byte, caption string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.images = append(m.images, sentImage{channelID: channelID, caption: caption, messageID: m.nextID})
	return m.nextID, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Consume(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func (s *captureSink) byStage(stage events.Stage) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, evt := range s.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
