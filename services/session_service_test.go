package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
)

func TestSessionManager_Authenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mockVerifier := mocks.NewMockIIdentityVerifier(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockRegistry := mocks.NewMockIRoomRegistry(ctrl)
	mgr := NewSessionManager(mockVerifier, mockUsers, mockRegistry, observability.NewMonitor(log), log)

	identity := auth.Identity{UID: "uid-42", PhoneNumber: "+33612345678"}
	profile := repositories.UserProfile{
		UID:         identity.UID,
		PhoneNumber: identity.PhoneNumber,
		Username:    lo.ToPtr("ada"),
		LastSeen:    time.Now().UTC(),
	}

	t.Run("should bind identity and join room when credential is valid", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockVerifier.EXPECT().Verify(gomock.Any(), "valid-token").Return(identity, nil).Times(1)
		mockUsers.EXPECT().GetOrCreate(gomock.Any(), identity.UID, identity.PhoneNumber, gomock.Any()).
			Return(profile, nil).Times(1)
		mockRegistry.EXPECT().Join(identity.UID, conn).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"valid-token"`))

		req.NoError(err)
		bound, ok := conn.sess.Identity()
		req.True(ok)
		req.Equal(identity, bound)
		req.Len(conn.events, 1)
		req.Equal(contract.EventAuthenticationSuccess, conn.events[0].event)
		req.Equal(contract.AuthenticationSuccess{
			UID:         identity.UID,
			PhoneNumber: identity.PhoneNumber,
			Username:    lo.ToPtr("ada"),
		}, conn.events[0].data)
	})

	t.Run("should accept a credential wrapped in an object", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockVerifier.EXPECT().Verify(gomock.Any(), "wrapped-token").Return(identity, nil).Times(1)
		mockUsers.EXPECT().GetOrCreate(gomock.Any(), identity.UID, identity.PhoneNumber, gomock.Any()).
			Return(profile, nil).Times(1)
		mockRegistry.EXPECT().Join(identity.UID, conn).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`{"token":"wrapped-token"}`))

		req.NoError(err)
		req.Equal(contract.EventAuthenticationSuccess, conn.events[0].event)
	})

	t.Run("should fail when no credential is provided", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		// The verifier must never see an empty credential.
		mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`""`))

		req.ErrorIs(err, errors.ErrCredentialMissing)
		_, ok := conn.sess.Identity()
		req.False(ok)
		req.Len(conn.events, 1)
		req.Equal(contract.EventAuthenticationFailed, conn.events[0].event)
		req.Equal(contract.AuthenticationFailed{Message: "No token provided."}, conn.events[0].data)
	})

	t.Run("should fail with the verifier reason when the credential is rejected", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		_, verifyErr := auth.TokenVerifier{}.Verify(context.Background(), "garbage")
		mockVerifier.EXPECT().Verify(gomock.Any(), "garbage").Return(auth.Identity{}, verifyErr).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"garbage"`))

		req.ErrorIs(err, errors.ErrInvalidCredential)
		req.Equal(contract.EventAuthenticationFailed, conn.events[0].event)
		failed := conn.events[0].data.(contract.AuthenticationFailed)
		req.True(strings.HasPrefix(failed.Message, "Invalid or expired token"))
	})

	t.Run("should fail when verified claims are incomplete", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockVerifier.EXPECT().Verify(gomock.Any(), "partial").
			Return(auth.Identity{UID: "uid-42"}, nil).Times(1)
		mockUsers.EXPECT().GetOrCreate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"partial"`))

		req.ErrorIs(err, errors.ErrIncompleteIdentity)
		req.Equal(contract.AuthenticationFailed{Message: "Token is missing required claims."}, conn.events[0].data)
	})

	t.Run("should fail without retrying when profile resolution fails", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockVerifier.EXPECT().Verify(gomock.Any(), "valid-token").Return(identity, nil).Times(1)
		mockUsers.EXPECT().GetOrCreate(gomock.Any(), identity.UID, identity.PhoneNumber, gomock.Any()).
			Return(repositories.UserProfile{}, errors.ErrMessagePersistenceFailed).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"valid-token"`))

		req.ErrorIs(err, errors.ErrProfileResolutionFailed)
		_, ok := conn.sess.Identity()
		req.False(ok)
		req.Equal(contract.AuthenticationFailed{Message: "Could not resolve user profile."}, conn.events[0].data)
	})

	t.Run("should capitalize the verifier reason without corrupting a multi-byte rune", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockVerifier.EXPECT().Verify(gomock.Any(), "bad").
			Return(auth.Identity{}, stderrors.New("échec du jeton")).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"bad"`))

		req.ErrorIs(err, errors.ErrInvalidCredential)
		req.Equal(contract.AuthenticationFailed{Message: "Échec du jeton"}, conn.events[0].data)
	})

	t.Run("should ignore an attempt that loses the binding race", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		// The session gets bound while this attempt is still in flight; the
		// first binding stands and no failure is reported.
		mockVerifier.EXPECT().Verify(gomock.Any(), "racing-token").
			DoAndReturn(func(ctx context.Context, credential string) (auth.Identity, error) {
				req.NoError(conn.sess.Bind(identity, time.Now().UTC()))
				return identity, nil
			}).Times(1)
		mockUsers.EXPECT().GetOrCreate(gomock.Any(), identity.UID, identity.PhoneNumber, gomock.Any()).
			Return(profile, nil).Times(1)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"racing-token"`))

		req.NoError(err)
		req.Empty(conn.events)
	})

	t.Run("should ignore re-authentication on a bound session", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, identity.UID, identity.PhoneNumber)

		mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)

		err := mgr.Authenticate(context.Background(), conn, json.RawMessage(`"another-token"`))

		req.NoError(err)
		req.Empty(conn.events)
	})
}

func TestSessionManager_UpdateProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockRegistry := mocks.NewMockIRoomRegistry(ctrl)
	mgr := NewSessionManager(nil, mockUsers, mockRegistry, observability.NewMonitor(log), log)

	t.Run("should reject when not authenticated", func(t *testing.T) {
		req := require.New(t)
		conn := newFakeConn()

		mockUsers.EXPECT().UpdateProfile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		mgr.UpdateProfile(context.Background(), conn, json.RawMessage(`{"username":"ada"}`))

		req.Len(conn.events, 1)
		req.Equal(contract.EventError, conn.events[0].event)
		req.Equal(contract.ErrorMessage{Message: "Not authenticated."}, conn.events[0].data)
	})

	t.Run("should reject non-string profile fields", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, "uid-42", "+33612345678")

		mgr.UpdateProfile(context.Background(), conn, json.RawMessage(`{"username":7}`))

		req.Equal(contract.EventProfileUpdateError, conn.events[0].event)
		req.Equal(contract.ProfileUpdateError{Message: "Invalid profile format."}, conn.events[0].data)
	})

	t.Run("should reject a username over 50 characters without touching the store", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, "uid-42", "+33612345678")

		mockUsers.EXPECT().UpdateProfile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		payload, err := json.Marshal(map[string]string{"username": strings.Repeat("a", 51)})
		req.NoError(err)
		mgr.UpdateProfile(context.Background(), conn, payload)

		req.Equal(contract.ProfileUpdateError{Message: "Username must be 50 characters or fewer."}, conn.events[0].data)
	})

	t.Run("should persist trimmed values and unset empty fields", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, "uid-42", "+33612345678")

		mockUsers.EXPECT().UpdateProfile(gomock.Any(), "uid-42", lo.ToPtr("Ada"), gomock.Nil()).
			Return(repositories.UserProfile{
				UID:         "uid-42",
				PhoneNumber: "+33612345678",
				Username:    lo.ToPtr("Ada"),
			}, nil).Times(1)

		mgr.UpdateProfile(context.Background(), conn, json.RawMessage(`{"username":"  Ada  ","profilePicUrl":""}`))

		req.Equal(contract.EventProfileUpdateSuccess, conn.events[0].event)
		req.Equal(contract.ProfileUpdateSuccess{Username: lo.ToPtr("Ada")}, conn.events[0].data)
		username, avatar := conn.sess.Profile()
		req.Equal("Ada", lo.FromPtr(username))
		req.Nil(avatar)
	})

	t.Run("should report a missing profile row distinctly", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, "ghost", "+33600000000")

		mockUsers.EXPECT().UpdateProfile(gomock.Any(), "ghost", gomock.Any(), gomock.Any()).
			Return(repositories.UserProfile{}, errors.ErrProfileNotFound).Times(1)

		mgr.UpdateProfile(context.Background(), conn, json.RawMessage(`{"username":"ada"}`))

		req.Equal(contract.ProfileUpdateError{Message: "Profile not found."}, conn.events[0].data)
	})

	t.Run("should report other store failures generically", func(t *testing.T) {
		req := require.New(t)
		conn := boundConn(t, "uid-42", "+33612345678")

		mockUsers.EXPECT().UpdateProfile(gomock.Any(), "uid-42", gomock.Any(), gomock.Any()).
			Return(repositories.UserProfile{}, context.DeadlineExceeded).Times(1)

		mgr.UpdateProfile(context.Background(), conn, json.RawMessage(`{"username":"ada"}`))

		req.Equal(contract.ProfileUpdateError{Message: "Could not update profile."}, conn.events[0].data)
	})
}

func TestSessionManager_Disconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	mockRegistry := mocks.NewMockIRoomRegistry(ctrl)
	mgr := NewSessionManager(nil, mockUsers, mockRegistry, observability.NewMonitor(log), log)

	t.Run("should leave the room and record last seen when bound", func(t *testing.T) {
		conn := boundConn(t, "uid-42", "+33612345678")

		mockRegistry.EXPECT().Leave(conn).Times(1)
		mockUsers.EXPECT().TouchLastSeen(gomock.Any(), "uid-42", gomock.Any()).Return(nil).Times(1)

		mgr.Disconnect(context.Background(), conn)
	})

	t.Run("should only leave the room when never authenticated", func(t *testing.T) {
		conn := newFakeConn()

		mockRegistry.EXPECT().Leave(conn).Times(1)
		mockUsers.EXPECT().TouchLastSeen(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		mgr.Disconnect(context.Background(), conn)
	})
}
