package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production Contact Energy API gateway
const DefaultBaseURL = "https://api.contact-digital-prod.net"

const defaultTimeout = 30 * time.Second

// Variant selects the endpoint set of one API generation
type Variant struct {
	Name         string
	LoginPath    string
	AccountsPath string
	UsagePath    string
	UsageMethod  string
}

var (
	// VariantV2 is the current API
	VariantV2 = Variant{
		Name:         "v2",
		LoginPath:    "/login/v2",
		AccountsPath: "/accounts/v2",
		UsagePath:    "/usage/v2",
		UsageMethod:  http.MethodPost,
	}

	// VariantLegacy is the original unversioned API
	VariantLegacy = Variant{
		Name:         "legacy",
		LoginPath:    "/login",
		AccountsPath: "/accounts",
		UsagePath:    "/usage",
		UsageMethod:  http.MethodPost,
	}
)

// VariantByName returns the variant called name ("v2" or "legacy")
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", VariantV2.Name:
		return VariantV2, nil
	case VariantLegacy.Name:
		return VariantLegacy, nil
	default:
		return Variant{}, fmt.Errorf("unknown API version: %s (available: v2, legacy)", name)
	}
}

// Auth is what the client authenticates with: Credentials or Token
type Auth interface {
	isAuth()
}

// Credentials log in with a username and password
type Credentials struct {
	Username string
	Password string
}

// Token reuses a previously issued bearer token
type Token struct {
	Value string
}

func (Credentials) isAuth() {}
func (Token) isAuth()       {}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithAPIKey sets the x-api-key sent on every request
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithVariant selects the API generation
func WithVariant(v Variant) Option {
	return func(c *Client) { c.variant = v }
}

// WithTransport replaces the HTTP transport
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides how the client determines "today"
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithAccount seeds already known account and contract IDs so ResolveAccount can be skipped
func WithAccount(accountID, contractID string) Option {
	return func(c *Client) {
		c.accountID = accountID
		c.contractID = contractID
	}
}

// Client talks to the Contact Energy API on behalf of one customer.
// Session state changes are guarded, but a ResolveAccount running alongside
// a usage query can still observe either the old or the new account.
type Client struct {
	baseURL   string
	apiKey    string
	variant   Variant
	transport Transport
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.RWMutex
	token      string
	accountID  string
	contractID string
}

// New creates a client. Credentials trigger a login; a Token is used as is.
func New(ctx context.Context, auth Auth, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:   DefaultBaseURL,
		variant:   VariantV2,
		transport: NewHTTPTransport(defaultTimeout),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch a := auth.(type) {
	case Credentials:
		if a.Username == "" || a.Password == "" {
			return nil, newError(ErrInvalidState, "new client", "username and password are required")
		}
		if _, err := c.Login(ctx, a.Username, a.Password); err != nil {
			return nil, err
		}
	case Token:
		if a.Value == "" {
			return nil, newError(ErrInvalidState, "new client", "token is empty")
		}
		c.token = a.Value
	default:
		return nil, newError(ErrInvalidState, "new client", "no credentials or token supplied")
	}

	return c, nil
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// AccountID returns the resolved account ID, empty until resolved
func (c *Client) AccountID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountID
}

// ContractID returns the resolved contract ID, empty until resolved
func (c *Client) ContractID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contractID
}

// BuildHeaders returns the headers required on every authenticated call
func (c *Client) BuildHeaders() (http.Header, error) {
	token := c.Token()
	if token == "" {
		return nil, newError(ErrInvalidState, "build headers", "authorisation token is empty")
	}

	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("session", token)
	h.Set("authorization", token)
	return h, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	return u
}

// fetchJSON performs an authenticated call and decodes the JSON body into out
func (c *Client) fetchJSON(ctx context.Context, op, method, reqURL string, out any) error {
	headers, err := c.BuildHeaders()
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, op, &Request{Method: method, URL: reqURL, Header: headers})
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Warn("unauthorized access", zap.String("op", op), zap.String("status", resp.Status))
		return &Error{Kind: ErrAuthentication, Op: op, StatusCode: resp.StatusCode, Message: bodySnippet(resp.Body)}
	case resp.StatusCode == http.StatusForbidden:
		c.logger.Warn("access forbidden", zap.String("op", op), zap.String("status", resp.Status))
		return &Error{Kind: ErrAuthentication, Op: op, StatusCode: resp.StatusCode, Message: bodySnippet(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Kind: ErrTransport, Op: op, StatusCode: resp.StatusCode, Message: bodySnippet(resp.Body)}
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: ErrTransport, Op: op, StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op string, req *Request) (*Response, error) {
	c.logger.Debug("sending request", zap.String("op", op), zap.String("method", req.Method), zap.String("url", redactQuery(req.URL)))

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		c.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		return nil, wrapError(ErrTransport, op, err)
	}

	c.logger.Debug("received response", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(resp.Body)))
	return resp, nil
}

// bodySnippet trims a response body for inclusion in an error message
func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// redactQuery drops the query string, which carries the account ID
func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
