package session

import (
	"sync"
	"testing"
	"time"

	"chat-relay/auth"
	"chat-relay/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestSession_BindOnce(t *testing.T) {
	req := require.New(t)
	s := New()

	_, bound := s.Identity()
	req.False(bound)

	identity := auth.Identity{UID: "u1", PhoneNumber: "+33600000001"}
	now := time.Now().UTC()
	req.NoError(s.Bind(identity, now))

	got, bound := s.Identity()
	req.True(bound)
	req.Equal(identity, got)
	req.Equal(now, s.BoundAt())

	// The binding is one-way: a second bind is rejected and leaves the
	// original identity untouched.
	err := s.Bind(auth.Identity{UID: "u2", PhoneNumber: "+33600000002"}, time.Now().UTC())
	req.ErrorIs(err, errors.ErrSessionAlreadyBound)

	got, _ = s.Identity()
	req.Equal("u1", got.UID)
}

func TestSession_ConcurrentBind(t *testing.T) {
	req := require.New(t)
	s := New()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Bind(auth.Identity{UID: "u1", PhoneNumber: "p"}, time.Now())
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	req.Equal(1, succeeded)
}

func TestSession_ProfileCache(t *testing.T) {
	req := require.New(t)
	s := New()

	username, avatar := s.Profile()
	req.Nil(username)
	req.Nil(avatar)

	s.SetProfile(lo.ToPtr("alice"), nil)
	username, avatar = s.Profile()
	req.Equal("alice", lo.FromPtr(username))
	req.Nil(avatar)
}
