// Package admission enforces per-user concurrency limits and deduplicates
// identical in-flight requests before any process is spawned.
package admission
