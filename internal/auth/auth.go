// Package auth handles user registration and cookie sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName = "scanhub_session"

	minUsernameLength = 3
	minPasswordLength = 6
)

var (
	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError lists rejected registration or login fields.
type ValidationError struct {
	Fields []types.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid credentials request: " + strings.Join(parts, "; ")
}

// FieldErrors returns the rejected fields.
func (e *ValidationError) FieldErrors() []types.FieldError { return e.Fields }

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, types.FieldError{Field: field, Message: msg})
}

// Registration is the input to Register.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Company  string `json:"company,omitempty"`
}

// Manager registers users and tracks who is logged in.
type Manager struct {
	store  store.Store
	cookie sessions.Store
	log    logrus.FieldLogger
	cost   int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for login and logout events.
func WithLogger(l logrus.FieldLogger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) ManagerOption {
	return func(m *Manager) { m.cost = cost }
}

// NewManager creates a Manager signing cookies with sessionKey. An empty key
// gets a random one, so sessions do not survive a restart.
func NewManager(st store.Store, sessionKey []byte, opts ...ManagerOption) *Manager {
	if len(sessionKey) == 0 {
		sessionKey = securecookie.GenerateRandomKey(32)
	}
	cookieStore := sessions.NewCookieStore(sessionKey)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   60 * 60 * 12,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	m := &Manager{
		store:  st,
		cookie: cookieStore,
		log:    logrus.StandardLogger(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register validates reg, hashes the password and stores the user.
// A taken username yields store.ErrConflict.
func (m *Manager) Register(ctx context.Context, reg Registration) (*types.User, error) {
	verr := &ValidationError{}
	checkCredentials(verr, reg.Username, reg.Password)
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		verr.add("email", "Must be a valid email address")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return m.store.CreateUser(ctx, store.NewUser{
		Username:     reg.Username,
		PasswordHash: string(hash),
		Email:        reg.Email,
		FullName:     reg.FullName,
		Company:      reg.Company,
	})
}

// Authenticate checks a username and password pair.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*types.User, error) {
	verr := &ValidationError{}
	checkCredentials(verr, username, password)
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	user, err := m.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login starts a session for user on the response.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, user *types.User) error {
	session, _ := m.cookie.Get(r, sessionName)
	sid := uuid.NewString()
	session.Values["user_id"] = user.ID
	session.Values["sid"] = sid
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.log.WithFields(logrus.Fields{"user_id": user.ID, "sid": sid}).Info("user logged in")
	return nil
}

// Logout clears the current session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.cookie.Get(r, sessionName)
	if sid, ok := session.Values["sid"].(string); ok {
		m.log.WithField("sid", sid).Info("user logged out")
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Middleware resolves the session user, if any, into the request context.
// Anonymous requests pass through untouched.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.cookie.Get(r, sessionName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		userID := toInt64(session.Values["user_id"])
		if userID == 0 {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.store.GetUser(r.Context(), userID)
		if err != nil {
			// Stale cookie for a user that no longer exists.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func checkCredentials(verr *ValidationError, username, password string) {
	if len(username) < minUsernameLength {
		verr.add("username", fmt.Sprintf("Username must be at least %d characters", minUsernameLength))
	}
	if len(password) < minPasswordLength {
		verr.add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
}

type contextKey struct{}

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*types.User)
	return user, ok && user != nil
}

// UserIDFromContext returns the authenticated user's id, or nil for
// anonymous requests.
func UserIDFromContext(ctx context.Context) *int64 {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil
	}
	id := user.ID
	return &id
}

func toInt64(v interface{}) int64 {
	switch value := v.(type) {
	case int:
		return int64(value)
	case int64:
		return value
	case float64:
		return int64(value)
	default:
		return 0
	}
}
