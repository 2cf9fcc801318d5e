package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"anywhere-shell/pkg/config"
)

const (
	loginPath         = "/login/"
	csrfCookieName    = "csrftoken"
	sessionCookieName = "sessionid"

	// DefaultExecutable is the program new consoles run.
	DefaultExecutable = "bash"

	defaultTimeout = 30 * time.Second

	// maxFrameSize bounds how much of a frame page is read.
	maxFrameSize = 4 << 20
)

// Client talks to the console service twice over: as a browser (login form,
// session cookie, console frame page) and as an API consumer (token-authorised
// consoles API).
type Client struct {
	baseURL    *url.URL
	username   string
	apiToken   string
	httpClient *http.Client
}

// New creates a client for the account and origin in cfg.
func New(cfg *config.Config) (*Client, error) {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: defaultTimeout})
}

// NewWithHTTPClient creates a client using httpClient. A cookie jar is
// installed when httpClient has none.
func NewWithHTTPClient(cfg *config.Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.Service.Origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid service origin %q: %w", cfg.Service.Origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid service origin %q: scheme and host are required", cfg.Service.Origin)
	}

	if httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL:    base,
		username:   cfg.Account.Username,
		apiToken:   cfg.Account.APIToken,
		httpClient: httpClient,
	}, nil
}

// Origin returns the service origin, e.g. https://www.pythonanywhere.com.
func (c *Client) Origin() string {
	return c.baseURL.String()
}

// Username returns the account the client acts for.
func (c *Client) Username() string {
	return c.username
}

// Login signs in through the web login form. On success the session cookie
// is held in the client's cookie jar.
func (c *Client) Login(ctx context.Context, password string) error {
	loginURL := c.resolve(loginPath)

	// The login page sets the CSRF cookie the form must echo back.
	resp, err := c.do(ctx, http.MethodGet, loginURL, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(resp.StatusCode, resp.Status, "load login page")
	}

	csrf, ok := c.cookie(csrfCookieName)
	if !ok {
		return fmt.Errorf("login page did not set a %s cookie", csrfCookieName)
	}

	form := url.Values{
		"csrfmiddlewaretoken":     {csrf},
		"auth-username":           {c.username},
		"auth-password":           {password},
		"login_view-current_step": {"auth"},
	}
	headers := http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
		"Referer":      {loginURL},
	}

	resp, err = c.do(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()), headers)
	if err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	drain(resp)
	if resp.StatusCode >= 400 {
		return NewHTTPError(resp.StatusCode, resp.Status, "submit login form")
	}

	// A rejected form is re-rendered with 200 and no session.
	if _, ok := c.cookie(sessionCookieName); !ok {
		return ErrInvalidCredentials
	}

	log.Info().Str("username", c.username).Msg("Logged in")
	return nil
}

// SessionCookie returns the value of the logged-in session cookie.
func (c *Client) SessionCookie() (string, error) {
	value, ok := c.cookie(sessionCookieName)
	if !ok {
		return "", ErrNoSessionCookie
	}
	return value, nil
}

// ListConsoles returns the account's consoles.
func (c *Client) ListConsoles(ctx context.Context) ([]Console, error) {
	var consoles []Console
	if err := c.api(ctx, http.MethodGet, c.consolesPath(), nil, "list consoles", &consoles); err != nil {
		return nil, err
	}
	return consoles, nil
}

// GetConsole returns one console by id.
func (c *Client) GetConsole(ctx context.Context, id int) (*Console, error) {
	var console Console
	path := c.consolesPath() + strconv.Itoa(id) + "/"
	if err := c.api(ctx, http.MethodGet, path, nil, "get console", &console); err != nil {
		return nil, err
	}
	return &console, nil
}

// CreateConsole creates a new console running executable, or bash when
// executable is empty.
func (c *Client) CreateConsole(ctx context.Context, executable string) (*Console, error) {
	if executable == "" {
		executable = DefaultExecutable
	}
	form := url.Values{"executable": {executable}}

	var console Console
	if err := c.api(ctx, http.MethodPost, c.consolesPath(), form, "create console", &console); err != nil {
		return nil, err
	}

	log.Info().Int("console_id", console.ID).Str("executable", executable).Msg("Console created")
	return &console, nil
}

// FetchFrame returns the HTML of a console frame page. frameURL may be
// relative to the origin. The request carries the login session cookie.
func (c *Client) FetchFrame(ctx context.Context, frameURL string) (string, error) {
	target := c.resolve(frameURL)

	resp, err := c.do(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch console frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewHTTPError(resp.StatusCode, resp.Status, "fetch console frame")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return "", fmt.Errorf("failed to read console frame: %w", err)
	}
	return string(body), nil
}

// URL resolves path against the origin.
func (c *Client) URL(path string) string {
	return c.resolve(path)
}

func (c *Client) consolesPath() string {
	return "/api/v0/user/" + url.PathEscape(c.username) + "/consoles/"
}

// api performs a token-authorised API call and decodes a JSON response.
func (c *Client) api(ctx context.Context, method, path string, form url.Values, operation string, out any) error {
	headers := http.Header{
		"Authorization": {"Token " + c.apiToken},
		"Accept":        {"application/json"},
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.do(ctx, method, c.resolve(path), body, headers)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewHTTPError(resp.StatusCode, resp.Status, operation)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	log.Debug().Str("method", method).Str("url", target).Msg("HTTP request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("method", method).Str("url", target).Int("status", resp.StatusCode).Msg("HTTP response")
	return resp, nil
}

func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return c.baseURL.String() + ref
	}
	return c.baseURL.ResolveReference(u).String()
}

func (c *Client) cookie(name string) (string, bool) {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == name && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
