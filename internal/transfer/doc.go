// Package transfer streams archive downloads into memory.
//
// A Fetcher reads the response body chunk by chunk, reports monotonic progress
// when the server announces a Content-Length, and stops reading as soon as the
// owning generation has been superseded. A stale fetch returns an empty buffer
// with no error so callers can drop it without special casing.
package transfer
