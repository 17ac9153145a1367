package authclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Snapshot returns a copy of the current session state.
func (c *Client) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() State {
	s := c.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription. fn runs on the goroutine that caused the change
// and must not call back into the Client's mutating methods.
func (c *Client) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// update applies fn to the state under the lock, then notifies subscribers
// with the result. Updates are serialised end to end.
func (c *Client) update(fn func(s *State, tokens *TokenPair)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	fn(&c.state, &c.tokens)
	c.state.Authenticated = c.state.User != nil && c.tokens.AccessToken != ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.subMu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Client) setLoading() {
	c.update(func(s *State, _ *TokenPair) {
		s.Loading = true
		s.Error = ""
	})
}

// fail records err as the session error. The previous user and tokens stay.
func (c *Client) fail(err error) error {
	c.update(func(s *State, _ *TokenPair) {
		s.Loading = false
		s.Error = errorMessage(err)
	})
	return err
}

// establish installs a fresh session. The pair is persisted before it
// becomes visible.
func (c *Client) establish(ctx context.Context, res authResponse) (*User, error) {
	if res.User == nil || !res.TokenPair.Complete() {
		return nil, c.fail(errors.New("authclient: incomplete auth response"))
	}
	if err := c.store.Save(ctx, res.TokenPair); err != nil {
		return nil, c.fail(err)
	}

	c.update(func(s *State, tokens *TokenPair) {
		*tokens = res.TokenPair
		s.User = res.User
		s.Loading = false
		s.Error = ""
	})
	c.log.Info().Str("user_id", res.User.ID).Msg("session established")

	u := *res.User
	return &u, nil
}

// clearSession drops the user and tokens from memory and storage.
func (c *Client) clearSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear stored tokens")
	}
	c.update(func(s *State, tokens *TokenPair) {
		*tokens = TokenPair{}
		s.User = nil
		s.Loading = false
	})
}

// Login signs in with email and password. On failure the error message is
// recorded in the state and any existing session is left as it was.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	c.setLoading()

	var res authResponse
	if err := c.postJSON(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, c.fail(err)
	}
	return c.establish(ctx, res)
}

// Register creates an account and signs in. The request is validated
// locally first; invalid input never reaches the network.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := c.validateRegister(req); err != nil {
		return nil, c.fail(err)
	}
	c.setLoading()

	var res authResponse
	if err := c.postJSON(ctx, "/auth/register", req, &res); err != nil {
		return nil, c.fail(err)
	}
	return c.establish(ctx, res)
}

func (c *Client) validateRegister(req RegisterRequest) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = fe.Field() + " is required"
		case "email":
			fields[fe.Field()] = fe.Field() + " must be a valid email"
		case "min":
			fields[fe.Field()] = fe.Field() + " must be at least " + fe.Param() + " characters"
		case "oneof":
			fields[fe.Field()] = fe.Field() + " must be one of: " + fe.Param()
		default:
			fields[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

// Logout tells the server on a best-effort basis, then clears the local
// session regardless of the outcome.
func (c *Client) Logout(ctx context.Context) {
	if token := c.accessToken(); token != "" {
		resp, err := c.send(ctx, http.MethodPost, "/auth/logout", nil, token)
		if err != nil {
			c.log.Debug().Err(err).Msg("logout notification failed")
		} else {
			drain(resp)
		}
	}
	c.clearSession(ctx)
	c.log.Info().Msg("logged out")
}

// UpdateUser merges patch into the cached user. Nothing is sent to the
// server; callers persist the change themselves.
func (c *Client) UpdateUser(patch UserPatch) {
	c.update(func(s *State, _ *TokenPair) {
		if s.User == nil {
			return
		}
		u := *s.User
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		s.User = &u
	})
}

// Restore rehydrates a session persisted by a previous process. Both stored
// tokens must be present; the identity is then fetched from /auth/me, which
// may refresh the pair. On any failure the stored tokens are cleared and the
// client starts signed out, and the error is returned. The state is Ready
// when Restore returns.
func (c *Client) Restore(ctx context.Context) error {
	defer c.update(func(s *State, _ *TokenPair) {
		s.Ready = true
		s.Loading = false
	})

	pair, err := c.store.Load(ctx)
	if err != nil || !pair.Complete() {
		c.clearSession(ctx)
		return err
	}

	c.update(func(s *State, tokens *TokenPair) {
		*tokens = pair
		s.User = nil
		s.Loading = true
	})

	user, err := c.Me(ctx)
	if err != nil {
		c.log.Info().Err(err).Msg("stored session rejected")
		c.clearSession(ctx)
		return err
	}

	c.update(func(s *State, _ *TokenPair) {
		s.User = user
	})
	return nil
}

// Me fetches the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var res userResponse
	if err := c.GetJSON(ctx, "/auth/me", &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, errors.New("authclient: empty identity response")
	}
	return res.User, nil
}

// ChangePassword changes the signed-in user's password. A wrong current
// password is reported as an *APIError with CodeInvalidCurrentPassword and
// does not touch the session.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.PostJSON(ctx, "/auth/change-password", changePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}, nil)
}
