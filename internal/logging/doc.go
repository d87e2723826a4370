// Package logging builds the slog loggers used across lantern.
//
// It supports json and console output formats, exposes small aliases for the
// slog attribute constructors so call sites stay compact, and provides no-op
// loggers for tests. Warnings emitted through WarnWithImpact always carry a
// cause and a user-facing impact attribute.
package logging
