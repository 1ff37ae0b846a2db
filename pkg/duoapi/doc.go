// Package duoapi is a small client for the Duo Admin API directory endpoints.
//
// It covers what a directory sync needs: listing users (with their nested
// groups, phones and tokens) and listing groups. Requests are signed with the
// Duo v2 HMAC scheme, walked page by page using limit/offset and optionally
// throttled with a token bucket.
//
//	client := duoapi.NewClient(duoapi.Credentials{
//	    IntegrationKey: "DIXXXXXXXXXXXXXXXXXX",
//	    SecretKey:      secret,
//	    Host:           "api-xxxxxxxx.duosecurity.com",
//	})
//	users, err := client.GetUsers(ctx)
package duoapi
