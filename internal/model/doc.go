package model

// Package model defines domain data structures shared across the bot: job
// requests, job phases, progress samples, probed media metadata, cache
// records, and the error taxonomy. Structures are designed for explicit
// state transitions and direct use in handler messaging.
