// Package mmap provides platform-specific helpers for mapping arena memory.
//
// On unix systems arenas are backed by private anonymous mappings created
// through golang.org/x/sys/unix, so releasing an arena returns its pages to
// the OS immediately instead of waiting for the Go garbage collector. Other
// platforms fall back to a heap slice with the same API.
package mmap
