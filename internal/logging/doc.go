// Package logging provides opt-in file-based structured logging with
// rotation for idxstore. With --debug, JSON logs are written to
// ~/.idxstore/logs/ in addition to stderr.
//
// Without --debug the CLI logs as text to stderr at the configured level.
package logging
