package services

import (
	"testing"
	"time"

	"chat-relay/auth"
	"chat-relay/domain/session"
)

type emitted struct {
	event string
	data  any
}

// fakeConn records emitted events in order and carries a real session, so a
// test can assert both the event sequence and the state transition.
type fakeConn struct {
	sess   *session.Session
	events []emitted
}

func newFakeConn() *fakeConn {
	return &fakeConn{sess: session.New()}
}

func (c *fakeConn) Session() *session.Session   { return c.sess }
func (c *fakeConn) Emit(event string, data any) { c.events = append(c.events, emitted{event, data}) }
func (c *fakeConn) Close()                      {}
func (c *fakeConn) RemoteAddr() string          { return "203.0.113.7:52100" }

func boundConn(t *testing.T, uid, phoneNumber string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	err := conn.sess.Bind(auth.Identity{UID: uid, PhoneNumber: phoneNumber}, time.Now().UTC())
	if err != nil {
		t.Fatalf("binding test session: %v", err)
	}
	return conn
}
