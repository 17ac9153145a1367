package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var errSessionChanged = errors.New("authclient: session changed during refresh")

// requestState is where a single outbound request is in the refresh cycle.
type requestState int

const (
	stateNormal requestState = iota
	stateUnauthorized
	stateRefreshing
	stateRetryOnce
	stateForcedLogout
)

func (s requestState) String() string {
	switch s {
	case stateNormal:
		return "normal"
	case stateUnauthorized:
		return "unauthorized"
	case stateRefreshing:
		return "refreshing"
	case stateRetryOnce:
		return "retry_once"
	case stateForcedLogout:
		return "forced_logout"
	}
	return "unknown"
}

// Do sends an authenticated request with body encoded as JSON (nil for
// none) and returns the raw response, which the caller must close.
//
// A 401 triggers one refresh of the token pair and one resend with the new
// access token. Whatever the resend returns is handed back unchanged, even
// another 401. If the refresh fails the session is cleared and Do returns
// ErrSessionExpired. Other statuses pass through untouched.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	var (
		state   = stateNormal
		token   = c.accessToken()
		resp    *http.Response
		cause   error
		retried bool
	)

	for {
		switch state {
		case stateNormal, stateRetryOnce:
			resp, err = c.send(ctx, method, path, payload, token)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusUnauthorized || retried {
				return resp, nil
			}
			state = stateUnauthorized

		case stateUnauthorized:
			drain(resp)
			state = stateRefreshing

		case stateRefreshing:
			pair, err := c.refresh(ctx, token)
			if err != nil {
				cause = err
				state = stateForcedLogout
				continue
			}
			token = pair.AccessToken
			retried = true
			state = stateRetryOnce

		case stateForcedLogout:
			c.log.Warn().Err(cause).Str("path", path).Msg("token refresh failed, clearing session")
			c.clearSession(ctx)
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, cause)
		}
	}
}

// refresh returns a pair newer than the one whose access token was stale.
// If another request already rotated the pair, that pair is reused;
// otherwise concurrent callers holding the same refresh token share a
// single exchange.
func (c *Client) refresh(ctx context.Context, stale string) (TokenPair, error) {
	c.mu.RLock()
	current := c.tokens
	c.mu.RUnlock()

	if current.AccessToken != "" && current.AccessToken != stale && current.RefreshToken != "" {
		return current, nil
	}
	if current.RefreshToken == "" {
		return TokenPair{}, ErrNoRefreshToken
	}

	v, err, shared := c.refreshGroup.Do(current.RefreshToken, func() (any, error) {
		c.mu.RLock()
		rotated := c.tokens.RefreshToken != current.RefreshToken
		c.mu.RUnlock()
		if rotated {
			return TokenPair{}, errSessionChanged
		}

		// Shared by every waiter: detached from this caller's cancellation,
		// bounded by the client timeout.
		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var pair TokenPair
		if err := c.postJSON(exCtx, "/auth/refresh", refreshRequest{RefreshToken: current.RefreshToken}, &pair); err != nil {
			return TokenPair{}, err
		}
		if !pair.Complete() {
			return TokenPair{}, errors.New("authclient: refresh returned an incomplete token pair")
		}
		if err := c.replaceTokens(exCtx, current.RefreshToken, pair); err != nil {
			return TokenPair{}, err
		}
		return pair, nil
	})
	if errors.Is(err, errSessionChanged) {
		c.mu.RLock()
		latest := c.tokens
		c.mu.RUnlock()
		if latest.Complete() {
			return latest, nil
		}
		return TokenPair{}, ErrNoRefreshToken
	}
	if err != nil {
		return TokenPair{}, err
	}

	c.log.Debug().Bool("shared", shared).Msg("token pair refreshed")
	return v.(TokenPair), nil
}

// replaceTokens swaps in pair only if the session still holds the refresh
// token that was exchanged. A logout or login in the meantime wins.
func (c *Client) replaceTokens(ctx context.Context, exchanged string, pair TokenPair) error {
	c.mu.Lock()
	if c.tokens.RefreshToken != exchanged {
		c.mu.Unlock()
		return errSessionChanged
	}
	c.tokens = pair
	c.mu.Unlock()

	if err := c.store.Save(ctx, pair); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist refreshed tokens")
	}
	return nil
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}
