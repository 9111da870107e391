package gateway

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// Session tracks the authenticated panel user and owns the HTTP client.
// The backend identifies the session by username plus whatever cookies it
// sets at login; the jar carries those transparently.
type Session struct {
	mu       sync.RWMutex
	client   *http.Client
	jar      *cookiejar.Jar
	username string
}

// NewSession creates a session with a fresh cookie jar
func NewSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: 15 * time.Second,
	}

	return &Session{
		client: client,
		jar:    jar,
	}, nil
}

// SetUsername records the logged-in user
func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

// Username returns the logged-in user, or "" if no session exists
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Active reports whether a user session exists
func (s *Session) Active() bool {
	return s.Username() != ""
}

// Client returns the HTTP client
func (s *Session) Client() *http.Client {
	return s.client
}

// Clear forgets the user and drops all cookies
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	s.jar = jar
	s.client.Jar = jar
	s.username = ""
	return nil
}
