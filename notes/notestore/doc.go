// Package notestore stores notes in a store.IStore under "note:<id>" as JSON.
// It also gives the auth and account packages access to user records
// ("user:<name>") through the same, optionally guarded, backend handle.
package notestore
