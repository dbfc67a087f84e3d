// Package store persists the media cache: one row per media id pointing at
// a previously delivered file in the cache channel. Creation uses a
// conditional insert so concurrent completions for the same id serialize
// into exactly one row.
package store
