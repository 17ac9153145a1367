// Package authclient is the Go client for the learning platform auth API.
//
// A Client owns the caller's session: the current user, the access/refresh
// token pair and the loading/error flags observers render from. Tokens are
// persisted through a TokenStore under two fixed keys so a later process can
// rehydrate with Restore.
//
// Requests sent through Do carry the access token. When the API answers 401
// the client exchanges the refresh token for a new pair and resends the
// request exactly once; if the exchange fails the session is cleared and the
// request fails with ErrSessionExpired.
//
//	c := authclient.New("https://api.example.com",
//		authclient.WithStore(authclient.NewFileStore(path)))
//	if err := c.Restore(ctx); err != nil {
//		// stored session was rejected and has been cleared
//	}
//	if _, err := c.Login(ctx, "a@b.com", "secret"); err != nil {
//		return err
//	}
//	var courses []Course
//	err := c.GetJSON(ctx, "/courses", &courses)
package authclient
