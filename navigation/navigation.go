// Package navigation moves the user to the sign-in entry point when the
// backend reports that their session expired.
package navigation

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/mindhaven/carekit/httpclient"
	"github.com/mindhaven/carekit/logger"
)

// DefaultEntryPath is where users sign in.
const DefaultEntryPath = "/login"

// NextParam carries the location to resume after signing in.
const NextParam = "next"

// Navigator is the host's router.
type Navigator interface {
	CurrentPath() string
	NavigateTo(path string)
}

// HistoryNavigator is an in-memory Navigator that keeps every location it
// visited. The CLI uses it in place of a browser router.
type HistoryNavigator struct {
	mu      sync.RWMutex
	history []string
}

var _ Navigator = (*HistoryNavigator)(nil)

// NewHistoryNavigator starts at start, or "/" when empty.
func NewHistoryNavigator(start string) *HistoryNavigator {
	if start == "" {
		start = "/"
	}
	return &HistoryNavigator{history: []string{start}}
}

func (h *HistoryNavigator) CurrentPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.history[len(h.history)-1]
}

func (h *HistoryNavigator) NavigateTo(p string) {
	h.mu.Lock()
	h.history = append(h.history, p)
	h.mu.Unlock()
}

// History returns every location visited, oldest first.
func (h *HistoryNavigator) History() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.history...)
}

// Redirector sends the user to the entry path on AuthExpired. It does
// nothing when the user is already there, so a 401 raised by the sign-in
// screen itself cannot loop.
type Redirector struct {
	nav       Navigator
	entryPath string
	log       logger.Logger
	mu        sync.Mutex
}

var _ httpclient.AuthObserver = (*Redirector)(nil)

// NewRedirector creates a Redirector. An empty entryPath selects DefaultEntryPath.
func NewRedirector(nav Navigator, entryPath string, log logger.Logger) *Redirector {
	if entryPath == "" {
		entryPath = DefaultEntryPath
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redirector{nav: nav, entryPath: entryPath, log: log}
}

// EntryPath returns the configured sign-in location.
func (r *Redirector) EntryPath() string {
	return r.entryPath
}

// OnAuthExpired implements httpclient.AuthObserver.
func (r *Redirector) OnAuthExpired(_ context.Context, _ *httpclient.ClassifiedError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.nav.CurrentPath()
	if r.IsEntryPath(current) {
		r.log.Debug().Str("path", current).Msg("Already at sign-in, skipping redirect")
		return
	}

	target := r.entryPath
	if current != "" && current != "/" {
		target += "?" + url.Values{NextParam: {current}}.Encode()
	}
	r.log.Info().Str("from", current).Str("to", r.entryPath).Msg("Session expired, redirecting to sign-in")
	r.nav.NavigateTo(target)
}

// IsEntryPath reports whether location points at the entry path. Locations
// are compared by their cleaned path, ignoring query, fragment and a
// trailing slash, so "/login-help" is not mistaken for "/login".
func (r *Redirector) IsEntryPath(location string) bool {
	return normalize(location) == normalize(r.entryPath)
}

func normalize(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
