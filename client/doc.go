// ABOUTME: Go SDK for the keygate authentication API
// ABOUTME: Signs requests, manages sessions, and exposes the auth operations

// Package client is the Go SDK for the keygate API. It signs every request
// with an application's secret key, carries the user's session token, and
// keeps a single persisted session per Client instance.
//
// The secret key must never reach untrusted code. This package is meant for
// trusted backends (a server, a backend-for-frontend) where the key stays
// server-side; embedding it in a browser bundle or mobile binary hands the
// signing capability to anyone who can read the artifact.
//
// A minimal flow:
//
//	c, err := client.New("https://auth.example.com", client.Credentials{
//		PublicKey: os.Getenv("KEYGATE_PUBLIC_KEY"),
//		SecretKey: os.Getenv("KEYGATE_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	session, err := c.Login(ctx, "ada@example.com", "hunter22")
package client
