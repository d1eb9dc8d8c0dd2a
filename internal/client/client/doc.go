// Package client contains the client side of the server contract and the
// local database bootstrap.
//
// # Overview
//
//  1. Remote (one per entity collection) and Client (auth, health) describe
//     what the sync layer needs from the server.
//  2. HTTPClient and Collection implement them over REST: bearer tokens from
//     a TokenSource, one transparent refresh on 401, proactive refresh of
//     tokens about to expire, rate limiting and paginated lists.
//  3. InitDatabase and RunMigrations open the local SQLite file and apply
//     the embedded goose migrations.
//
// # Error Handling
//
// Failures are returned as *RemoteError. Match the cause with errors.Is:
// ErrUnavailable (network, timeouts, 408/429/5xx), ErrUnauthorized,
// common.ErrorNotFound (404) or ErrRejected (any other non-2xx).
// IsRetryable tells the sync service whether to keep an operation queued.
package client
