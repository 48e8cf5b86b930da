// Package api is a typed client for the meme backend REST API.
//
// Every call returns data or an error; use [Message] to turn any error into
// the single string shown to the user. Protected calls check the bearer
// token's exp claim locally and fail with an error matching ggmeme.ErrAuth
// before any request is sent. Free text (titles, descriptions, report
// details) is stripped of markup with a bluemonday strict policy.
//
//	c, _ := api.New("https://memes.example/api", api.WithTokenSource(storage.NewAuthToken(store)))
//	items, err := c.PublicMemes(ctx, 24)
//	if err != nil {
//	    show(api.Message(err))
//	}
package api
