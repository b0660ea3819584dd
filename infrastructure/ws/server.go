package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/services"
)

// Server upgrades HTTP requests to websocket connections and routes their
// event envelopes to the session manager and the message router.
type Server struct {
	upgrader    websocket.Upgrader
	sessions    services.ISessionManager
	router      services.IMessageRouter
	monitor     *observability.Monitor
	authTimeout time.Duration
	log         *slog.Logger
}

func NewServer(
	sessions services.ISessionManager,
	router services.IMessageRouter,
	monitor *observability.Monitor,
	authTimeout time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions:    sessions,
		router:      router,
		monitor:     monitor,
		authTimeout: authTimeout,
		log:         log,
	}
}

// ServeWS is the websocket entrypoint. The connection starts unauthenticated
// and must complete its single authenticate attempt within authTimeout, or it
// is terminated to avoid leaking abandoned connections.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := newClient(conn, s)
	s.monitor.ConnOpened()
	s.log.Debug("Client connected", "remote", client.RemoteAddr())

	client.authTimer = time.AfterFunc(s.authTimeout, func() {
		if _, bound := client.Session().Identity(); bound {
			return
		}
		s.log.Info("Closing unauthenticated connection after timeout", "remote", client.RemoteAddr())
		client.Emit(contract.EventAuthenticationFailed, contract.AuthenticationFailed{Message: "Authentication timed out."})
		client.Close()
	})

	go client.writePump()
	go client.readPump(context.Background())
}

// route dispatches one inbound envelope. It reports whether the connection
// reached a terminal state and must be torn down.
func (s *Server) route(ctx context.Context, client *Client, env envelope) (terminate bool) {
	switch env.Event {
	case contract.EventAuthenticate:
		if err := s.sessions.Authenticate(ctx, client, env.Data); err != nil {
			s.log.Warn("Authentication failed", "remote", client.RemoteAddr(), "err", err)
			client.Close()
			return true
		}
		if client.authTimer != nil {
			client.authTimer.Stop()
		}
		return false

	case contract.EventSendMessage:
		s.router.Send(ctx, client, env.Data)

	case contract.EventTyping:
		s.router.RelayTyping(client, env.Data)

	case contract.EventUpdateProfile:
		s.sessions.UpdateProfile(ctx, client, env.Data)

	default:
		client.Emit(contract.EventError, contract.ErrorMessage{Message: "Unknown event."})
	}
	return false
}
