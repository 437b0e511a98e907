// Package conversation owns one live chat view: the transcript, the
// single in-flight assistant call and the session gate driven by the timer.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/crisis"
	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/ai"
	"github.com/zhouzirui/mindcheck/backend/internal/service/timer"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("an assistant reply is still pending")
	ErrSessionGated = errors.New("session time is up")
	ErrClosed       = errors.New("conversation is closed")
)

const (
	// GreetingID is the fixed id of the seeded first message.
	GreetingID = "welcome"
	// FallbackReply replaces any failed assistant call.
	FallbackReply = "I'm sorry, I'm having trouble connecting. Please try again in a moment."
)

// Greeting returns the first assistant message text for name.
func Greeting(name string) string {
	return fmt.Sprintf("Hi %s! I'm here to chat with you about how you're feeling today. How can I help?", name)
}

// Config wires a controller to its collaborators.
type Config struct {
	// KV must already be scoped to the profile.
	KV        store.KV
	Assistant ai.Assistant
	// Detector defaults to the built-in pattern set when nil.
	Detector *crisis.Detector
	// Timer defaults to a real-time countdown of timer.DefaultDuration.
	Timer    *timer.Timer
	UserName string
	Severity phq9.Severity
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// Controller is safe for concurrent use. Listeners run outside the internal
// lock, one batch at a time, in the order the state changed; they may call
// back into the controller.
type Controller struct {
	mu sync.Mutex

	history   *History
	timer     *timer.Timer
	assistant ai.Assistant
	detector  *crisis.Detector
	userName  string
	severity  phq9.Severity
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger

	messages  []chat.Message
	activated bool
	inFlight  bool
	gated     bool
	closed    bool

	listeners   map[int]func(Event)
	nextID      int
	pending     []Event
	dispatching bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a controller. Call Activate before submitting messages.
func New(cfg Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		history:   NewHistory(cfg.KV),
		timer:     cfg.Timer,
		assistant: cfg.Assistant,
		detector:  cfg.Detector,
		userName:  cfg.UserName,
		severity:  cfg.Severity,
		now:       time.Now,
		newID:     uuid.NewString,
		listeners: make(map[int]func(Event)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.detector == nil {
		c.detector = crisis.MustNew()
	}
	if c.timer == nil {
		c.timer = timer.New(cfg.KV, timer.DefaultDuration)
	}
	c.logger = log.With().Str("component", "conversation").Logger()

	c.timer.OnTick(c.handleTick)
	c.timer.OnExpire(c.handleExpire)
	return c
}

// Subscribe registers fn for every later event. The returned function
// removes it.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Activate restores the persisted transcript, or seeds and persists the
// greeting, then starts the session countdown. Repeated calls are no-ops.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.activated {
		c.mu.Unlock()
		return nil
	}
	c.activated = true

	if messages, ok := c.history.Load(ctx); ok {
		c.messages = messages
	} else {
		greeting := chat.NewMessage(GreetingID, Greeting(c.userName), chat.SenderAssistant, c.now())
		c.messages = []chat.Message{greeting}
		c.persistLocked(ctx)
	}
	c.mu.Unlock()

	// 倒计时可能在 Start 内同步到期，必须在锁外调用。
	c.timer.Start(ctx)
	return nil
}

// SubmitUserMessage appends the user's text and asks the assistant for a
// reply in the background. The reply, or the fallback text on any failure,
// arrives as an EventMessage.
func (c *Controller) SubmitUserMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.gated:
		c.mu.Unlock()
		return ErrSessionGated
	case c.inFlight:
		c.mu.Unlock()
		return ErrBusy
	}

	if c.detector.Detect(text) {
		notice := crisis.DefaultNotice()
		c.pending = append(c.pending, Event{Type: EventCrisis, Notice: &notice})
		c.logger.Info().Msg("crisis language detected")
	}

	userMessage := chat.NewMessage(c.newID(), text, chat.SenderUser, c.now())
	c.appendLocked(userMessage)

	c.inFlight = true
	c.pending = append(c.pending, Event{Type: EventBusy, Busy: true})

	prompt := ai.BuildPrompt(c.severity, text)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.requestReply(prompt)

	c.flush()
	return nil
}

func (c *Controller) requestReply(prompt string) {
	started := c.now()
	reply, err := c.assistant.Reply(c.ctx, prompt)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Done()
		return
	}

	if err == nil && strings.TrimSpace(reply) == "" {
		err = ai.ErrEmptyReply
	}

	var message chat.Message
	if err != nil {
		c.logger.Warn().Err(err).Msg("assistant call failed, using fallback reply")
		message = chat.NewMessage("error-"+c.newID(), FallbackReply, chat.SenderAssistant, c.now())
	} else {
		c.logger.Debug().Dur("latency", c.now().Sub(started)).Msg("assistant replied")
		message = chat.NewMessage("ai-"+c.newID(), reply, chat.SenderAssistant, c.now())
	}
	c.appendLocked(message)

	c.inFlight = false
	c.pending = append(c.pending, Event{Type: EventBusy, Busy: false})
	c.mu.Unlock()

	// Done before delivery so a listener may call Close without waiting on itself.
	c.wg.Done()
	c.flush()
}

// appendLocked adds a message, persists the full sequence and queues its event.
func (c *Controller) appendLocked(m chat.Message) {
	c.messages = append(c.messages, m)
	c.persistLocked(c.ctx)
	c.pending = append(c.pending, messageEvent(m))
}

func (c *Controller) persistLocked(ctx context.Context) {
	if err := c.history.Save(ctx, c.messages); err != nil {
		// 内存中的记录仍然有效，下次追加时会重写整个序列。
		c.logger.Error().Err(err).Int("messages", len(c.messages)).Msg("failed to persist chat history")
	}
}

func (c *Controller) handleTick(remaining time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, Event{Type: EventTick, Remaining: remaining})
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) handleExpire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gated = true
	c.pending = append(c.pending, Event{Type: EventExpired})
	c.mu.Unlock()

	c.logger.Info().Msg("session time expired")
	c.flush()
}

// flush delivers queued events. Only one goroutine delivers at a time;
// events queued meanwhile are picked up by the active deliverer.
func (c *Controller) flush() {
	for {
		c.mu.Lock()
		if c.dispatching || c.closed || len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		c.dispatching = true
		batch := c.pending
		c.pending = nil
		listeners := make([]func(Event), 0, len(c.listeners))
		for id := 0; id < c.nextID; id++ {
			if fn, ok := c.listeners[id]; ok {
				listeners = append(listeners, fn)
			}
		}
		c.mu.Unlock()

		for _, ev := range batch {
			for _, fn := range listeners {
				fn(ev)
			}
		}

		c.mu.Lock()
		c.dispatching = false
		c.mu.Unlock()
	}
}

// DismissGate hides the expired-session gate for this controller only.
func (c *Controller) DismissGate() {
	c.mu.Lock()
	c.gated = false
	c.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether an assistant call is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Gated reports whether the expired-session gate is showing.
func (c *Controller) Gated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gated
}

// Remaining returns the session time left.
func (c *Controller) Remaining() time.Duration {
	return c.timer.Remaining()
}

// Close stops the countdown, cancels any pending assistant call and waits
// for it to return. A reply arriving after Close is discarded. Close is
// idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pending = nil
	c.listeners = make(map[int]func(Event))
	c.mu.Unlock()

	c.timer.Stop()
	c.cancel()
	c.wg.Wait()
}
