// Package logs reads the daemon log file for `moonrider logs`.
//
// Last returns the final lines of the file, Since reads forward from an
// offset, and Follow polls until its context ends. Only newline-terminated
// lines are returned so a line being written is never split.
package logs
