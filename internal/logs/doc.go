// Package logs reads the scenesub log file for the CLI: the last N lines,
// and new lines as they are appended.
package logs
