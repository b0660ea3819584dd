package e2e

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chat-relay/auth"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/services"
)

const signingSecret = "e2e-signing-secret"

// BaseWsSuite boots a full relay (websocket transport, services, SQLite
// store) on an ephemeral port for each test.
type BaseWsSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	wsURL  string
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	auth.SetSigningKey([]byte(signingSecret))
}

func (s *BaseWsSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := repositories.Open(filepath.Join(s.T().TempDir(), "relay.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	monitor := observability.NewMonitor(log)
	registry := ws.NewRegistry()
	sessions := services.NewSessionManager(
		auth.NewTokenVerifier(), repositories.NewUserRepository(db), registry, monitor, log)
	router := services.NewMessageRouter(
		repositories.NewMessageRepository(db), registry, nil, monitor, log)
	relay := ws.NewServer(sessions, router, monitor, s.Config.AuthTimeout, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.ServeWS)

	s.server = httptest.NewServer(mux)
	s.wsURL = "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

func (s *BaseWsSuite) TearDownTest() {
	s.server.Close()
}

// Dial opens a websocket connection with a colorized header in the logs so
// multi-connection scenarios stay readable.
func (s *BaseWsSuite) Dial(name string) *wsClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.wsURL)
	s.T().Cleanup(func() { _ = conn.Close() })

	return &wsClient{suite: s, name: name, conn: conn}
}

// DialAuthenticated dials and completes the authentication handshake for uid.
func (s *BaseWsSuite) DialAuthenticated(name, uid, phoneNumber string) *wsClient {
	client := s.Dial(name)
	client.Emit("authenticate", s.MintToken(uid, phoneNumber))
	client.Expect("authenticationSuccess")
	return client
}

// MintToken signs a short-lived credential accepted by the suite's relay.
func (s *BaseWsSuite) MintToken(uid, phoneNumber string) string {
	token, err := auth.GenerateToken(uid, phoneNumber, time.Hour)
	s.Require().NoError(err)
	return token
}

type wsClient struct {
	suite *BaseWsSuite
	name  string
	conn  *websocket.Conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *wsClient) Emit(event string, data any) {
	raw, err := json.Marshal(frame{Event: event, Data: mustRaw(data)})
	c.suite.Require().NoError(err)
	c.logFrame("SEND", raw)
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, raw))
}

// Expect reads the next frame and requires it to carry the given event name.
func (c *wsClient) Expect(event string) json.RawMessage {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.suite.Config.ReadTimeout)))

	_, raw, err := c.conn.ReadMessage()
	c.suite.Require().NoError(err, "%s: expected a %q frame", c.name, event)
	c.logFrame("RECV", raw)

	var f frame
	c.suite.Require().NoError(json.Unmarshal(raw, &f))
	c.suite.Require().Equal(event, f.Event, "%s: unexpected event", c.name)
	return f.Data
}

// ExpectInto reads the next frame into target after checking the event name.
func (c *wsClient) ExpectInto(event string, target any) {
	data := c.Expect(event)
	c.suite.Require().NoError(json.Unmarshal(data, target))
}

// ExpectClosed requires the server to have terminated the connection.
func (c *wsClient) ExpectClosed() {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.suite.Config.ReadTimeout)))
	_, _, err := c.conn.ReadMessage()
	c.suite.Require().Error(err, "%s: connection should be closed", c.name)
}

func (c *wsClient) logFrame(direction string, raw []byte) {
	if c.suite.Config.DebugJSON {
		c.suite.T().Logf("%s %s: %s", c.name, direction, raw)
	}
}

func mustRaw(data any) json.RawMessage {
	if raw, ok := data.(json.RawMessage); ok {
		return raw
	}
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return raw
}
