// Package common holds the types shared by the rpc client, server and transports:
// the Message protocol, the server and client configuration and the logger
// factory that is installed into dragonboat's logger package.
//
// All loggers are created with logger.GetLogger(name) and print lines like
//
//	2025/01/01 12:00:00 INFO  | session         | connection from 127.0.0.1 admitted
//
// InitLoggers must be called once at startup to install the format and level.
package common
