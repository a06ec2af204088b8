// Package logging builds the slog loggers used by the server, CLI and TUI.
//
// Console output is a one-line human format, JSON output uses ts/level/msg
// keys, and an optional rotating log file always receives JSON.
package logging
