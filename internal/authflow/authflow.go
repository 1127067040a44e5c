// Package authflow runs the one-time OAuth2 authorization-code exchange that
// produces the Drive bearer token. It starts a loopback callback server,
// sends the user's browser to the provider's consent page, and trades the
// returned code for a token.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"todokeep/internal/utils"
)

// driveFileScope limits access to files the app itself created
const driveFileScope = "https://www.googleapis.com/auth/drive.file"

// ErrCancelled is returned when the user abandons the consent page or the
// context is done before the callback arrives.
var ErrCancelled = errors.New("authorization cancelled")

// Flow implements drive.Authorizer using the authorization-code grant with a
// loopback redirect.
type Flow struct {
	config      *oauth2.Config
	listenAddr  string
	openBrowser func(url string) error
	timeout     time.Duration
}

// Option is a functional option for Flow
type Option func(*Flow)

// WithEndpoint overrides the provider endpoints (for testing)
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(f *Flow) {
		f.config.Endpoint = ep
	}
}

// WithBrowserOpener overrides how the consent URL is opened (for testing)
func WithBrowserOpener(open func(url string) error) Option {
	return func(f *Flow) {
		f.openBrowser = open
	}
}

// WithTimeout bounds how long the flow waits for the callback
func WithTimeout(d time.Duration) Option {
	return func(f *Flow) {
		f.timeout = d
	}
}

// New creates a Flow for the given OAuth client
func New(clientID, clientSecret string, opts ...Option) *Flow {
	f := &Flow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{driveFileScope},
			Endpoint:     google.Endpoint,
		},
		listenAddr:  "127.0.0.1:0",
		openBrowser: openInBrowser,
		timeout:     3 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// callbackResult carries the outcome of the redirect back to the flow
type callbackResult struct {
	code string
	err  error
}

// Authorize runs the flow and returns the access token. Cancellation or a
// denied consent page yields ErrCancelled wrapped in the returned error.
func (f *Flow) Authorize(ctx context.Context) (string, error) {
	if f.config.ClientID == "" {
		return "", fmt.Errorf("no OAuth client configured")
	}

	listener, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() { _ = listener.Close() }()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	cfg := *f.config
	cfg.RedirectURL = redirectURL

	// The state nonce ties the callback to this attempt
	state := uuid.New().String()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("state mismatch in callback")}
			return
		}
		if errCode := query.Get("error"); errCode != "" {
			_, _ = fmt.Fprintln(w, "Authorization was denied. You can close this window.")
			results <- callbackResult{err: fmt.Errorf("%w: %s", ErrCancelled, errCode)}
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("callback carried no authorization code")}
			return
		}
		_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
		results <- callbackResult{code: code}
	})

	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if err := f.openBrowser(authURL); err != nil {
		utils.Warnf("could not open browser, visit manually: %s", authURL)
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	var result callbackResult
	select {
	case result = <-results:
	case <-timer.C:
		return "", fmt.Errorf("%w: no response within %s", ErrCancelled, f.timeout)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	if result.err != nil {
		return "", result.err
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}
	return token.AccessToken, nil
}

// openInBrowser launches the platform browser at url
func openInBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
