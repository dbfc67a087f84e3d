// Package probe resolves media metadata (title, duration, formats) before
// a job is admitted. The primary path shells out through yt-dlp; on
// failure one attempt goes to the mirror backend with a reduced field set.
package probe
