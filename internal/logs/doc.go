// Package logs reads back libconv's own log file: the last N lines, and new
// lines as they are appended.
package logs
