// Package logging assembles structured slog loggers for boldrank commands.
//
// It owns the console and JSON handlers, level parsing, and output plumbing,
// and exposes attribute helpers so every stage emits the same keys. Loggers
// carry the run id and stage taken from the context, which lets a single log
// file hold several runs and still be filtered per run. NewNop returns a
// logger for tests and for library code that was handed none.
package logging
