package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/utils"
)

// SessionState is the lifecycle position of a session. Transitions only move forward.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the connection a session runs over.
type Transport interface {
	// Ping checks the peer is alive. It returns an error if ctx expires first.
	Ping(ctx context.Context) error
	// Close closes the connection, telling the peer why.
	Close(reason CloseReason) error
}

// IdentityVerifier turns a connect credential into a user id.
type IdentityVerifier interface {
	VerifyConnect(ctx context.Context, credential string) (string, error)
}

// SessionConfig controls session timing and buffering.
type SessionConfig struct {
	AuthTimeout  time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	SendBuffer   int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// Session is one real-time connection. All state changes happen on the
// goroutine running Run.
type Session struct {
	id        string
	registry  *Registry
	verifier  IdentityVerifier
	transport Transport
	cfg       SessionConfig
	logger    *zerolog.Logger

	commands  chan Command
	events    chan *Event
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	state  SessionState
	userID string
	reason CloseReason
}

var _ Handle = (*Session)(nil)

func newSession(registry *Registry, verifier IdentityVerifier, t Transport, cfg SessionConfig, logger *zerolog.Logger) *Session {
	id := utils.NewID()
	l := logger.With().Str("session_id", id).Logger()
	return &Session{
		id:        id,
		registry:  registry,
		verifier:  verifier,
		transport: t,
		cfg:       cfg,
		logger:    &l,
		commands:  make(chan Command, 4),
		events:    make(chan *Event, cfg.SendBuffer),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated user, or "" before authentication.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns the close reason. Meaningful once Done is closed.
func (s *Session) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Events is the outbound queue. It is never closed; watch Done instead.
func (s *Session) Events() <-chan *Event { return s.events }

// Done is closed once the session reached StateClosed and its transport is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Push enqueues ev without blocking.
func (s *Session) Push(ev *Event) error {
	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the session to shut down. The first reason wins.
func (s *Session) Close(reason CloseReason) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.closing)
	})
}

// Authenticate submits a connect credential.
func (s *Session) Authenticate(credential string) error {
	return s.submit(Command{Kind: CommandAuthenticate, Credential: credential})
}

func (s *Session) submit(cmd Command) error {
	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}
	select {
	case s.commands <- cmd:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run drives the session until it closes. It always leaves the session in
// StateClosed, unregistered and with its transport closed.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.finish()

	go func() {
		select {
		case <-s.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	authTimer := time.NewTimer(s.cfg.AuthTimeout)
	defer authTimer.Stop()

	var ticker *time.Ticker
	var pingC <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-s.closing:
			return
		case <-ctx.Done():
			s.Close(CloseShutdown)
			return
		case <-authTimer.C:
			if s.State() != StateActive {
				s.logger.Info().Msg("authentication timed out")
				s.Close(CloseAuthTimeout)
				return
			}
		case cmd := <-s.commands:
			switch cmd.Kind {
			case CommandAuthenticate:
				if s.State() != StateConnecting {
					s.logger.Debug().Msg("ignoring repeated authenticate")
					continue
				}
				if !s.authenticate(ctx, cmd.Credential) {
					return
				}
				authTimer.Stop()
				ticker = time.NewTicker(s.cfg.PingInterval)
				pingC = ticker.C
			case CommandClose:
				s.Close(CloseNormal)
				return
			}
		case <-pingC:
			pingCtx, pingCancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
			err := s.transport.Ping(pingCtx)
			pingCancel()
			if err != nil {
				select {
				case <-s.closing:
				default:
					s.logger.Info().Err(err).Msg("liveness check failed")
					s.Close(CloseLivenessLost)
				}
				return
			}
		}
	}
}

func (s *Session) authenticate(ctx context.Context, credential string) bool {
	s.setState(StateAuthenticating)

	credential = strings.TrimSpace(credential)
	if credential == "" {
		s.logger.Info().Msg("no credential supplied")
		s.Close(CloseUnauthorized)
		return false
	}

	userID, err := s.verifier.VerifyConnect(ctx, credential)
	if err != nil {
		s.logger.Info().Err(err).Msg("connect credential rejected")
		s.Close(CloseUnauthorized)
		return false
	}

	select {
	case <-s.closing:
		return false
	default:
	}

	s.mu.Lock()
	s.userID = userID
	s.state = StateActive
	s.mu.Unlock()

	l := s.logger.With().Str("user_id", userID).Logger()
	s.logger = &l

	s.registry.Register(userID, s)
	s.logger.Info().Msg("session active")
	return true
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state > s.state {
		s.state = state
	}
}

func (s *Session) finish() {
	s.Close(CloseNormal)

	s.mu.Lock()
	wasActive := s.state == StateActive
	s.state = StateClosed
	userID := s.userID
	reason := s.reason
	s.mu.Unlock()

	if wasActive {
		removed := s.registry.Unregister(userID, s)
		s.logger.Info().Str("reason", reason.String()).Bool("unregistered", removed).Msg("session closed")
	} else {
		s.logger.Debug().Str("reason", reason.String()).Msg("session closed before activation")
	}

	if err := s.transport.Close(reason); err != nil {
		s.logger.Debug().Err(err).Msg("transport close")
	}
	close(s.done)
}

// Leave asks for an orderly close from the client side.
func (s *Session) Leave() error {
	return s.submit(Command{Kind: CommandClose})
}
