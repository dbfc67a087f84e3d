// Package deliver decides how a finished job's output reaches the user:
// inline through the messaging transport, or via the file-hosting fallback
// when the file exceeds the inline ceiling. It also owns the at-most-one
// cache write per media id.
package deliver
