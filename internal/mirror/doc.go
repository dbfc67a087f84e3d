// Package mirror implements the alternate job backend used when yt-dlp is
// unavailable or failing: a pure-Go extraction client that streams the
// media itself and reports byte-level progress. It plugs in behind the
// same Backend interface as the primary fetcher.
package mirror
