package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
)

var validate = validator.New()

// Client-facing failure reasons. Authentication reasons end up in
// authenticationFailed events, the rest in profileUpdateError / error events.
const (
	msgNoToken            = "No token provided."
	msgIncompleteIdentity = "Token is missing required claims."
	msgProfileResolution  = "Could not resolve user profile."
	msgNotAuthenticated   = "Not authenticated."
	msgInvalidProfile     = "Invalid profile format."
	msgUsernameTooLong    = "Username must be 50 characters or fewer."
	msgProfileNotFound    = "Profile not found."
	msgProfileUpdate      = "Could not update profile."
)

// ISessionManager owns the connection state machine: it promotes an
// unauthenticated connection to an identity-bound one (exactly once), gates
// identity-requiring actions, and is the only mutator of room membership.
type ISessionManager interface {
	// Authenticate drives the single permitted authentication attempt.
	// A non-nil error means the attempt reached a terminal failure state and
	// the caller must close the transport; the failure event has already
	// been emitted.
	Authenticate(ctx context.Context, conn contract.Connection, payload json.RawMessage) error
	// UpdateProfile validates and persists display attributes for the bound
	// identity. All outcomes are reported to the requesting connection only.
	UpdateProfile(ctx context.Context, conn contract.Connection, payload json.RawMessage)
	// Disconnect is the transport's disconnect callback: it removes the
	// connection from its room and records last-seen for bound sessions.
	Disconnect(ctx context.Context, conn contract.Connection)
}

type SessionManager struct {
	verifier auth.IIdentityVerifier
	users    repositories.IUserRepository
	registry contract.IRoomRegistry
	monitor  *observability.Monitor
	log      *slog.Logger
}

func NewSessionManager(
	verifier auth.IIdentityVerifier,
	users repositories.IUserRepository,
	registry contract.IRoomRegistry,
	monitor *observability.Monitor,
	log *slog.Logger,
) *SessionManager {
	return &SessionManager{
		verifier: verifier,
		users:    users,
		registry: registry,
		monitor:  monitor,
		log:      log,
	}
}

func (m *SessionManager) Authenticate(ctx context.Context, conn contract.Connection, payload json.RawMessage) error {
	sess := conn.Session()

	// A second authenticate on a bound session is ignored rather than
	// re-verified: the identity-to-connection binding is a one-way
	// transition.
	if identity, bound := sess.Identity(); bound {
		m.log.Debug("Ignoring re-authentication attempt", "uid", identity.UID, "remote", conn.RemoteAddr())
		return nil
	}

	credential := decodeCredential(payload)
	if credential == "" {
		return m.failAuth(conn, msgNoToken, errors.ErrCredentialMissing)
	}

	identity, err := m.verifier.Verify(ctx, credential)
	if err != nil {
		// The reason shown to the client comes from the verifier.
		return m.failAuth(conn, capitalize(err.Error()), fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err))
	}

	if identity.UID == "" || identity.PhoneNumber == "" {
		return m.failAuth(conn, msgIncompleteIdentity, errors.ErrIncompleteIdentity)
	}

	profile, err := m.users.GetOrCreate(ctx, identity.UID, identity.PhoneNumber, time.Now().UTC())
	if err != nil {
		// No automatic retry, even for transient store errors: the client
		// reconnects and resubmits.
		m.log.Error("Profile resolution failed", "uid", identity.UID, "err", err)
		return m.failAuth(conn, msgProfileResolution, fmt.Errorf("%w: %v", errors.ErrProfileResolutionFailed, err))
	}

	if err := sess.Bind(identity, time.Now().UTC()); err != nil {
		// Lost a race with an earlier authenticate on this connection; the
		// first binding stands and this attempt is ignored like any other
		// re-authentication.
		m.log.Debug("Ignoring re-authentication attempt", "uid", identity.UID, "remote", conn.RemoteAddr())
		return nil
	}
	sess.SetProfile(profile.Username, profile.ProfilePicURL)
	m.registry.Join(identity.UID, conn)

	m.monitor.IncrAuthSuccess()
	m.log.Info("Connection authenticated", "uid", identity.UID, "remote", conn.RemoteAddr())

	conn.Emit(contract.EventAuthenticationSuccess, contract.AuthenticationSuccess{
		UID:           profile.UID,
		PhoneNumber:   profile.PhoneNumber,
		Username:      profile.Username,
		ProfilePicURL: profile.ProfilePicURL,
	})
	return nil
}

func (m *SessionManager) UpdateProfile(ctx context.Context, conn contract.Connection, payload json.RawMessage) {
	identity, bound := conn.Session().Identity()
	if !bound {
		m.log.Debug("Rejected profile update", "remote", conn.RemoteAddr(), "err", errors.ErrUnauthorized)
		conn.Emit(contract.EventError, contract.ErrorMessage{Message: msgNotAuthenticated})
		return
	}

	var fields struct {
		Username      *string `json:"username"`
		ProfilePicURL *string `json:"profilePicUrl"`
	}
	// Absent or null fields coerce to empty; any non-string type is a
	// format error. No side effect may happen past this point on failure.
	if err := json.Unmarshal(payload, &fields); err != nil {
		m.log.Debug("Rejected profile update", "uid", identity.UID, "err", errors.ErrInvalidFormat)
		conn.Emit(contract.EventProfileUpdateError, contract.ProfileUpdateError{Message: msgInvalidProfile})
		return
	}

	update := profileUpdate{
		Username:      strings.TrimSpace(lo.FromPtr(fields.Username)),
		ProfilePicURL: strings.TrimSpace(lo.FromPtr(fields.ProfilePicURL)),
	}
	if err := validate.Struct(update); err != nil {
		m.log.Debug("Rejected profile update", "uid", identity.UID, "err", errors.ErrUsernameTooLong)
		conn.Emit(contract.EventProfileUpdateError, contract.ProfileUpdateError{Message: msgUsernameTooLong})
		return
	}

	// Empty strings are persisted as NULL: an explicit unset.
	profile, err := m.users.UpdateProfile(ctx, identity.UID,
		lo.EmptyableToPtr(update.Username), lo.EmptyableToPtr(update.ProfilePicURL))
	if err != nil {
		if stderrors.Is(err, errors.ErrProfileNotFound) {
			// Authenticated identity without a backing row is a
			// data-integrity failure, not a client mistake.
			m.log.Error("Profile row missing for authenticated identity", "uid", identity.UID)
			conn.Emit(contract.EventProfileUpdateError, contract.ProfileUpdateError{Message: msgProfileNotFound})
			return
		}
		m.log.Error("Profile update failed", "uid", identity.UID, "err", err)
		conn.Emit(contract.EventProfileUpdateError, contract.ProfileUpdateError{Message: msgProfileUpdate})
		return
	}

	conn.Session().SetProfile(profile.Username, profile.ProfilePicURL)
	conn.Emit(contract.EventProfileUpdateSuccess, contract.ProfileUpdateSuccess{
		Username:      profile.Username,
		ProfilePicURL: profile.ProfilePicURL,
	})
}

func (m *SessionManager) Disconnect(ctx context.Context, conn contract.Connection) {
	m.registry.Leave(conn)

	identity, bound := conn.Session().Identity()
	if !bound {
		return
	}

	// The write is best-effort; the connection is already gone.
	if err := m.users.TouchLastSeen(ctx, identity.UID, time.Now().UTC()); err != nil {
		m.log.Error("Failed to record last seen", "uid", identity.UID, "err", err)
	}
	m.log.Info("Connection closed", "uid", identity.UID, "remote", conn.RemoteAddr())
}

func (m *SessionManager) failAuth(conn contract.Connection, reason string, err error) error {
	m.monitor.IncrAuthFailure()
	conn.Emit(contract.EventAuthenticationFailed, contract.AuthenticationFailed{Message: reason})
	return err
}

type profileUpdate struct {
	Username      string `validate:"max=50"`
	ProfilePicURL string
}

// decodeCredential accepts the token either as a bare JSON string or wrapped
// in a {"token": …} object.
func decodeCredential(payload json.RawMessage) string {
	var credential string
	if err := json.Unmarshal(payload, &credential); err == nil {
		return strings.TrimSpace(credential)
	}

	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil {
		return strings.TrimSpace(wrapped.Token)
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
