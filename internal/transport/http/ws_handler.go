package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/config"
	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/proto"
)

const (
	maxInboundFrame = 16 << 10
	writeTimeout    = 10 * time.Second

	// StatusSessionReplaced is sent to a connection superseded by a newer one.
	StatusSessionReplaced websocket.StatusCode = 4001
)

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	gateway        *core.Gateway
	originPatterns []string
	rateLimit      int
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.Gateway, cfg *config.Config, logger *zerolog.Logger) http.Handler {
	return &WSHandler{
		gateway:        gateway,
		originPatterns: originHosts(cfg.AllowedOrigins),
		rateLimit:      cfg.Session.RateLimit,
		log:            logger,
	}
}

// originHosts turns configured origins (full URLs or bare hosts) into the
// host patterns websocket.Accept matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxInboundFrame)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.gateway.Open(&wsTransport{conn: conn})
	log := h.log.With().Str("session_id", sess.ID()).Logger()
	go sess.Run(ctx)

	// The original client passes its identity in the query string.
	if cred := connectCredential(r); cred != "" {
		_ = sess.Authenticate(cred)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess, &log)
	}()

	err = <-errCh
	if err != nil && !isExpectedClose(err) {
		log.Warn().Err(err).Msg("ws connection closed with error")
	}
	sess.Close(core.CloseTransportClosed)
	<-sess.Done()
	cancel()
	<-errCh
}

func connectCredential(r *http.Request) string {
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	return strings.TrimSpace(q.Get("userId"))
}

func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, log *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.Allow() {
			pushError(sess, core.ErrCodeRateLimited, "rate limit exceeded")
			continue
		}

		switch inbound.Type {
		case proto.InboundTypeHello:
			var hello proto.HelloData
			if len(inbound.Data) > 0 {
				if err := json.Unmarshal(inbound.Data, &hello); err != nil {
					pushError(sess, core.ErrCodeBadRequest, "invalid hello payload")
					continue
				}
			}
			if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
				pushError(sess, core.ErrCodeUnsupportedVersion, "unsupported protocol version")
				continue
			}
			cred := hello.Token
			if cred == "" {
				cred = hello.UserID
			}
			if err := sess.Authenticate(cred); err != nil {
				log.Debug().Err(err).Msg("authenticate not accepted")
			}
		case proto.InboundTypeBye:
			_ = sess.Leave()
		default:
			pushError(sess, core.ErrCodeInvalidMessage, "unknown message type")
		}
	}
}

func pushError(sess *core.Session, code, msg string) {
	_ = sess.Push(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: code, Message: msg},
	})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, log *zerolog.Logger) error {
	for {
		select {
		case event := <-sess.Events():
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, outboundFromEvent(event))
			cancel()
			if err != nil {
				log.Debug().Err(err).Msg("write ws event")
				return err
			}
		case <-sess.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// wsTransport adapts a websocket connection to core.Transport.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close(reason core.CloseReason) error {
	status, text := closeStatus(reason)
	return t.conn.Close(status, text)
}

func closeStatus(reason core.CloseReason) (websocket.StatusCode, string) {
	switch reason {
	case core.CloseSuperseded:
		return StatusSessionReplaced, "session replaced"
	case core.CloseUnauthorized:
		return websocket.StatusPolicyViolation, "unauthorized"
	case core.CloseAuthTimeout:
		return websocket.StatusPolicyViolation, "authentication timeout"
	case core.CloseLivenessLost:
		return websocket.StatusGoingAway, "liveness lost"
	case core.CloseShutdown:
		return websocket.StatusGoingAway, "server shutting down"
	default:
		return websocket.StatusNormalClosure, "closing"
	}
}
