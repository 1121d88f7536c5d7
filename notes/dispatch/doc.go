// Package dispatch executes Get, Set and Delete against the note store.
//
// Store failures become a 500 status with a generic message, the cause is
// logged. Deleting a note that does not exist is a 404 and not an error.
package dispatch
