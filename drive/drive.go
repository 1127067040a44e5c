// Package drive implements the remote backup client against a Google
// Drive-style HTTP API: bearer-token auth, multipart snapshot upload,
// listing by naming convention, and download by file ID.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"sync"
	"time"

	"todokeep/snapshot"
)

const (
	// DefaultBaseURL is the Google APIs base URL
	DefaultBaseURL = "https://www.googleapis.com"

	uploadPath = "/upload/drive/v3/files"
	filesPath  = "/drive/v3/files"
)

// Descriptor is a lightweight handle to a snapshot stored remotely, returned
// by listing. It refers to the snapshot body without containing it.
type Descriptor struct {
	FileID       string
	Name         string
	ModifiedTime time.Time
}

// TokenCache is the persistent cache for the bearer token. Implemented by
// internal/credentials.
type TokenCache interface {
	Token(ctx context.Context) (token string, found bool, err error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Authorizer runs the external authorization flow and returns a bearer
// token. A cancelled flow returns an error.
type Authorizer interface {
	Authorize(ctx context.Context) (string, error)
}

// authState tracks the client's authentication state machine. The typed
// state keeps the retry-once-on-401 invariant enforced in one place.
type authState int

const (
	stateUnauthenticated authState = iota
	stateAuthenticating
	stateAuthenticated
)

// Config holds Drive connection settings
type Config struct {
	BaseURL string        // Override for testing
	Timeout time.Duration // HTTP timeout; defaults to 30s
}

// Client is the remote backup client
type Client struct {
	client  *http.Client
	baseURL string
	tokens  TokenCache
	auth    Authorizer

	mu       sync.Mutex
	state    authState
	token    string
	authDone chan struct{} // closed when the in-flight attempt finishes
	authErr  error         // outcome of the finished attempt
}

// New creates a new Drive client
func New(cfg Config, tokens TokenCache, auth Authorizer) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		tokens:  tokens,
		auth:    auth,
		state:   stateUnauthenticated,
	}
}

// EnsureAuthenticated moves the client to the Authenticated state. A cached
// token is adopted optimistically without a network round-trip; otherwise the
// authorization flow runs and its token is cached. Only one attempt is ever
// in flight: concurrent callers wait for it and share its outcome.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateAuthenticated:
		c.mu.Unlock()
		return nil
	case stateAuthenticating:
		done := c.authDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return &AuthError{Reason: "authentication interrupted", Err: ctx.Err()}
		}
		c.mu.Lock()
		err := c.authErr
		c.mu.Unlock()
		return err
	}

	// Become the authenticating goroutine
	c.state = stateAuthenticating
	done := make(chan struct{})
	c.authDone = done
	c.mu.Unlock()

	token, err := c.obtainToken(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = stateUnauthenticated
		c.authErr = err
	} else {
		c.state = stateAuthenticated
		c.token = token
		c.authErr = nil
	}
	close(done)
	c.mu.Unlock()

	return err
}

// obtainToken returns a bearer token from the cache or, failing that, from
// the authorization flow.
func (c *Client) obtainToken(ctx context.Context) (string, error) {
	token, found, err := c.tokens.Token(ctx)
	if err != nil {
		return "", &AuthError{Reason: "token cache unavailable", Err: err}
	}
	if found {
		// Adopted optimistically; a stale token surfaces later as a 401
		return token, nil
	}

	token, err = c.auth.Authorize(ctx)
	if err != nil {
		return "", &AuthError{Reason: "authorization flow failed", Err: err}
	}

	if err := c.tokens.Save(ctx, token); err != nil {
		// The token is valid even if caching it failed; next run re-authorizes
		return token, nil
	}
	return token, nil
}

// invalidateToken drops the current token after the provider rejected it
func (c *Client) invalidateToken(ctx context.Context) {
	c.mu.Lock()
	c.state = stateUnauthenticated
	c.token = ""
	c.mu.Unlock()
	_ = c.tokens.Clear(ctx)
}

// bearerToken returns the adopted token for request signing
func (c *Client) bearerToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// send performs one authenticated HTTP request
func (c *Client) send(ctx context.Context, method, rawurl string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.client.Do(req)
}

// doAuthorized performs an authenticated request, handling token expiry: on
// a 401 response the cached token is cleared and exactly one
// re-authentication and retry is attempted before failing with AuthError.
func (c *Client) doAuthorized(ctx context.Context, method, rawurl string, body []byte, contentType string) (*http.Response, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, rawurl, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	c.invalidateToken(ctx)
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, method, rawurl, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.invalidateToken(ctx)
		return nil, &AuthError{Reason: "token rejected after re-authentication"}
	}
	return resp, nil
}

// Upload stores snapshot bytes remotely under the given name using a
// multipart create request. It returns the descriptor of the created file.
func (c *Client) Upload(ctx context.Context, data []byte, name string) (*Descriptor, error) {
	body, contentType, err := multipartBody(name, data)
	if err != nil {
		return nil, &UploadError{Err: err}
	}

	rawurl := c.baseURL + uploadPath + "?uploadType=multipart&fields=" + url.QueryEscape("id,name,modifiedTime")

	resp, err := c.doAuthorized(ctx, http.MethodPost, rawurl, body, contentType)
	if err != nil {
		if isAuthErr(err) {
			return nil, err
		}
		return nil, &UploadError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UploadError{Status: resp.StatusCode}
	}

	var created struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		ModifiedTime string `json:"modifiedTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &UploadError{Err: err}
	}
	if created.ID == "" {
		return nil, &UploadError{Err: fmt.Errorf("provider returned no file id")}
	}

	modified, _ := time.Parse(time.RFC3339, created.ModifiedTime)
	return &Descriptor{
		FileID:       created.ID,
		Name:         created.Name,
		ModifiedTime: modified,
	}, nil
}

// List returns the remote snapshots that follow the backup naming
// convention, newest first by modified time. Newest-first ordering is a hard
// contract for the listing UI.
func (c *Client) List(ctx context.Context) ([]Descriptor, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("name contains 'TodoBackup_' and mimeType='%s'", snapshot.MimeType))
	query.Set("fields", "files(id, name, createdTime, modifiedTime)")
	query.Set("orderBy", "modifiedTime desc")

	rawurl := c.baseURL + filesPath + "?" + query.Encode()

	resp, err := c.doAuthorized(ctx, http.MethodGet, rawurl, nil, "")
	if err != nil {
		if isAuthErr(err) {
			return nil, err
		}
		return nil, &ListError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &ListError{Status: resp.StatusCode}
	}

	var result struct {
		Files []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			ModifiedTime string `json:"modifiedTime"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ListError{Err: err}
	}

	descriptors := make([]Descriptor, 0, len(result.Files))
	for _, f := range result.Files {
		// The query constrains name and mimeType, but the convention is
		// re-checked here so foreign files never reach the listing
		if !snapshot.IsBackupName(f.Name) {
			continue
		}
		modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		descriptors = append(descriptors, Descriptor{
			FileID:       f.ID,
			Name:         f.Name,
			ModifiedTime: modified,
		})
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].ModifiedTime.After(descriptors[j].ModifiedTime)
	})

	return descriptors, nil
}

// Download fetches the raw snapshot bytes for a provider file ID. It does
// not decode them; the caller invokes the snapshot codec.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	rawurl := c.baseURL + filesPath + "/" + url.PathEscape(fileID) + "?alt=media"

	resp, err := c.doAuthorized(ctx, http.MethodGet, rawurl, nil, "")
	if err != nil {
		if isAuthErr(err) {
			return nil, err
		}
		return nil, &DownloadError{FileID: fileID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{FileID: fileID, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{FileID: fileID, Err: err}
	}
	return data, nil
}

// SignOut drops the cached token and returns the client to the
// unauthenticated state.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.state = stateUnauthenticated
	c.token = ""
	c.mu.Unlock()
	return c.tokens.Clear(ctx)
}

// multipartBody builds the multipart/related payload for a Drive create
// request: a JSON metadata part followed by the media part.
func multipartBody(name string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metadata := map[string]interface{}{
		"name":     name,
		"mimeType": snapshot.MimeType,
		"parents":  []string{"root"},
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", err
	}

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", snapshot.MimeType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()
	return buf.Bytes(), contentType, nil
}
