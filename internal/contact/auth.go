package contact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token any `json:"token"`
}

type accountsResponse struct {
	AccountsSummary []accountSummary `json:"accountsSummary"`
}

type accountSummary struct {
	ID        string     `json:"id"`
	Contracts []contract `json:"contracts"`
}

type contract struct {
	ContractID string `json:"contractId"`
}

// Login exchanges a username and password for a bearer token and stores it on the client
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "login"

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", wrapError(ErrTransport, op, err)
	}

	headers := http.Header{}
	headers.Set("x-api-key", c.apiKey)

	resp, err := c.send(ctx, op, &Request{
		Method: http.MethodPost,
		URL:    c.endpoint(c.variant.LoginPath, nil),
		Header: headers,
		Body:   body,
	})
	if err != nil {
		return "", err
	}

	// Bad credentials come back as a 4xx of some flavour, not always 401.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		c.logger.Warn("login rejected", zap.Int("status", resp.StatusCode))
		return "", &Error{Kind: ErrAuthentication, Op: op, StatusCode: resp.StatusCode, Message: bodySnippet(resp.Body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Kind: ErrTransport, Op: op, StatusCode: resp.StatusCode, Message: bodySnippet(resp.Body)}
	}

	var lr loginResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil {
		return "", &Error{Kind: ErrTransport, Op: op, StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	token, ok := lr.Token.(string)
	if !ok || token == "" {
		return "", newError(ErrAuthentication, op, "response has no token field")
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.logger.Debug("logged in")
	return token, nil
}

// ResolveAccount looks up the account summary and selects the first
// account and its first contract for subsequent usage queries
func (c *Client) ResolveAccount(ctx context.Context) error {
	const op = "resolve account"

	var resp accountsResponse
	reqURL := c.endpoint(c.variant.AccountsPath, url.Values{"ba": {""}})
	if err := c.fetchJSON(ctx, op, http.MethodGet, reqURL, &resp); err != nil {
		return err
	}

	if len(resp.AccountsSummary) == 0 {
		return newError(ErrDataUnavailable, op, "no account summary in API response")
	}
	first := resp.AccountsSummary[0]
	if len(first.Contracts) == 0 {
		return newError(ErrDataUnavailable, op, "account %s has no contracts", first.ID)
	}
	accountID := first.ID
	contractID := first.Contracts[0].ContractID
	if accountID == "" || contractID == "" {
		return newError(ErrDataUnavailable, op, "no account id or contract id in API response")
	}

	c.mu.Lock()
	c.accountID = accountID
	c.contractID = contractID
	c.mu.Unlock()

	c.logger.Debug("resolved account", zap.Int("accounts", len(resp.AccountsSummary)), zap.Int("contracts", len(first.Contracts)))
	return nil
}
