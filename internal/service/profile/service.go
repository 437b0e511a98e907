// Package profile manages the onboarding outcome of a client: who they are
// and how they scored. Each profile lives in its own store namespace.
package profile

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/conversation"
	"github.com/zhouzirui/mindcheck/backend/internal/service/timer"
	"github.com/zhouzirui/mindcheck/backend/internal/store"
)

var (
	ErrInvalidID    = errors.New("profile id must be 1-64 letters, digits, '-' or '_'")
	ErrNameRequired = errors.New("name is required")
	ErrNotOnboarded = errors.New("profile has not completed onboarding")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks a client supplied profile id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// Service reads and writes profiles in a shared store and tracks the chat
// views open on each profile.
type Service struct {
	kv store.KV

	mu       sync.Mutex
	sessions map[string]map[int]func()
	nextID   int
}

// NewService binds the service to the root store.
func NewService(kv store.KV) *Service {
	return &Service{kv: kv, sessions: make(map[string]map[int]func())}
}

// Attach registers end as a live session of the profile. Reset calls end
// and waits for it before removing any key, so end must stop every write
// the session could still make. The returned func unregisters it.
func (s *Service) Attach(id string, end func()) (detach func()) {
	s.mu.Lock()
	sid := s.nextID
	s.nextID++
	if s.sessions[id] == nil {
		s.sessions[id] = make(map[int]func())
	}
	s.sessions[id][sid] = end
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.sessions[id], sid)
		if len(s.sessions[id]) == 0 {
			delete(s.sessions, id)
		}
	}
}

func (s *Service) endSessions(id string) int {
	s.mu.Lock()
	enders := make([]func(), 0, len(s.sessions[id]))
	for _, end := range s.sessions[id] {
		enders = append(enders, end)
	}
	s.mu.Unlock()

	for _, end := range enders {
		end()
	}
	return len(enders)
}

// Scope returns the store namespace of one profile.
func (s *Service) Scope(id string) (store.KV, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return store.ForProfile(s.kv, id), nil
}

// Complete records a finished onboarding. The completion flag is written
// last so an interrupted write never yields an onboarded profile without a
// name or score.
func (s *Service) Complete(ctx context.Context, id, name string, answers phq9.Answers) (chat.Profile, error) {
	kv, err := s.Scope(id)
	if err != nil {
		return chat.Profile{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Profile{}, ErrNameRequired
	}

	score := phq9.Score(answers)
	if err := kv.Set(ctx, store.KeyUserName, name); err != nil {
		return chat.Profile{}, errors.Wrap(err, "save user name")
	}
	if err := kv.Set(ctx, store.KeyScore, strconv.Itoa(score)); err != nil {
		return chat.Profile{}, errors.Wrap(err, "save score")
	}
	if err := kv.Set(ctx, store.KeyOnboarded, "true"); err != nil {
		return chat.Profile{}, errors.Wrap(err, "save onboarding flag")
	}

	severity := phq9.Classify(score)
	log.Info().Str("component", "profile").Str("profile", id).Int("score", score).Str("severity", string(severity)).Msg("onboarding completed")

	return newProfile(id, name, score), nil
}

// Load returns the stored profile or ErrNotOnboarded. Every key is read
// independently; an unreadable value counts as unset.
func (s *Service) Load(ctx context.Context, id string) (chat.Profile, error) {
	kv, err := s.Scope(id)
	if err != nil {
		return chat.Profile{}, err
	}

	flag, _, err := kv.Get(ctx, store.KeyOnboarded)
	if err != nil {
		return chat.Profile{}, errors.Wrap(err, "read onboarding flag")
	}
	if onboarded, _ := strconv.ParseBool(strings.TrimSpace(flag)); !onboarded {
		return chat.Profile{}, ErrNotOnboarded
	}

	name := s.readName(ctx, kv)
	score := s.readScore(ctx, kv)
	return newProfile(id, name, score), nil
}

func (s *Service) readName(ctx context.Context, kv store.KV) string {
	raw, ok, err := kv.Get(ctx, store.KeyUserName)
	if err != nil || !ok {
		return ""
	}
	// Older clients stored the name JSON encoded.
	if strings.HasPrefix(raw, `"`) {
		var decoded string
		if json.Unmarshal([]byte(raw), &decoded) == nil {
			return decoded
		}
	}
	return raw
}

func (s *Service) readScore(ctx context.Context, kv store.KV) int {
	raw, ok, err := kv.Get(ctx, store.KeyScore)
	if err != nil || !ok {
		return 0
	}
	score, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("component", "profile").Str("value", raw).Msg("ignoring corrupt score")
		return 0
	}
	return score
}

// Reset ends the open chat views of the profile, then removes every key
// including the transcript and the session end time.
func (s *Service) Reset(ctx context.Context, id string) error {
	kv, err := s.Scope(id)
	if err != nil {
		return err
	}
	ended := s.endSessions(id)

	for _, key := range []string{store.KeyOnboarded, store.KeyUserName, store.KeyScore} {
		if err := kv.Remove(ctx, key); err != nil {
			return errors.Wrapf(err, "remove %s", key)
		}
	}
	if err := conversation.NewHistory(kv).Clear(ctx); err != nil {
		return errors.Wrap(err, "clear chat history")
	}
	if err := timer.Clear(ctx, kv); err != nil {
		return errors.Wrap(err, "remove session end time")
	}
	log.Info().Str("component", "profile").Str("profile", id).Int("sessions_ended", ended).Msg("profile reset")
	return nil
}

func newProfile(id, name string, score int) chat.Profile {
	severity := phq9.Classify(score)
	return chat.Profile{
		ID:            id,
		HasOnboarded:  true,
		UserName:      name,
		Score:         score,
		Severity:      severity,
		SeverityLabel: severity.Label(),
	}
}
