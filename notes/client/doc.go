// Package client is a small Go client for the WebSocket note protocol,
// used by the "dnotes note" commands.
package client
