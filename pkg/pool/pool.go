// Package pool provides reusable byte buffers for the copy and compression
// paths, relieving pressure on the garbage collector when many small files
// are staged and archived.
//
// Items in a sync.Pool may be dropped at any garbage collection, so pools are
// only used for short-lived buffers, never for resources that need closing.
package pool

// minBufferSize keeps io.CopyBuffer efficient even for tiny configured sizes.
const minBufferSize = 4 * 1024
