package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chatline-server/internal/proto"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	peer := flag.String("peer", "", "user id to chat with")
	flag.Parse()

	if *email == "" || *password == "" || *peer == "" {
		return errors.New("-email, -password and -peer are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	c := &client{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	me, err := c.login(ctx, *email, *password)
	if err != nil {
		return err
	}
	connectToken, err := c.connectToken(ctx)
	if err != nil {
		return err
	}

	wsURL, err := socketURL(c.base, connectToken)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	fmt.Printf("Connected as %s (%s), chatting with %s\n", me.FullName, me.ID, *peer)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, me.ID)
	}()

	c.writeLoop(ctx, *peer)

	bye, _ := json.Marshal(struct{}{})
	_ = wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeBye, Data: bye})
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func socketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func (c *client) login(ctx context.Context, email, password string) (proto.User, error) {
	var resp struct {
		Success  bool       `json:"success"`
		UserData proto.User `json:"userData"`
		Token    string     `json:"token"`
		Message  string     `json:"message"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return proto.User{}, fmt.Errorf("login: %w", err)
	}
	c.token = resp.Token
	return resp.UserData, nil
}

func (c *client) connectToken(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/connect-token", nil, &resp); err != nil {
		return "", fmt.Errorf("connect token: %w", err)
	}
	return resp.Token, nil
}

func (c *client) send(ctx context.Context, peer, text string) error {
	body := map[string]string{"text": text}
	return c.do(ctx, http.MethodPost, "/api/message/send/"+url.PathEscape(peer), body, nil)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	reader := bytes.NewReader(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, failure.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readLoop(ctx context.Context, conn *websocket.Conn, selfID string) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case -1:
				log.Printf("read error: %v", err)
			default:
				log.Printf("connection closed: %v", err)
			}
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Printf("! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventOnlineUsers:
			var online []string
			if err := json.Unmarshal(outbound.Data, &online); err != nil {
				log.Printf("unmarshal onlineUsers: %v", err)
				continue
			}
			fmt.Printf("* online: %s\n", strings.Join(online, ", "))
		case proto.EventNewMessage:
			var msg proto.Message
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				log.Printf("unmarshal newMessage: %v", err)
				continue
			}
			body := msg.Text
			if body == "" && msg.Image != "" {
				body = "[image]"
			}
			from := msg.SenderID
			if from == selfID {
				from = "me"
			}
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format(time.Kitchen), from, body)
		default:
			fmt.Printf("event=%s data=%s\n", outbound.Event, outbound.Data)
		}
	}
}

func (c *client) writeLoop(ctx context.Context, peer string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := c.send(ctx, peer, text); err != nil {
				log.Printf("send error: %v", err)
			}
		}
	}
}
