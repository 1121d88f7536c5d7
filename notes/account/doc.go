// Package account registers users and issues the WebSocket tokens checked by
// the "user" auth gate.
//
// POST /account/login verifies the password, stores a new UUID in the wsToken
// field of user:<name> and sets it as the __Host.__ws cookie. POST
// /account/signup stores passwordHash and salt (Argon2id, base64); it needs a
// logged in user unless open signup is configured. GET /account/profile and
// POST /account/logout identify the user through the same gate as the
// WebSocket endpoint. Signup and login accept a JSON body or a form with
// username and password.
package account
