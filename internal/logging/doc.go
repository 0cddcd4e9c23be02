// Package logging sets up structured slog logging for semidx.
//
// Logs are JSON lines written to a size-rotating file under ~/.semidx/logs/
// and, unless the process serves MCP over stdio, mirrored to stderr.
package logging
