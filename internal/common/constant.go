// Package common contains shared constants and sentinel errors used across
// gophchat components.
package common

const (
	// AuthorizationHeaderName carries the access token on inbound HTTP requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token inside the Authorization header.
	BearerPrefix = "Bearer "
)
