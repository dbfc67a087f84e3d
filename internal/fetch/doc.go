// Package fetch implements the primary job backend: a supervised yt-dlp
// process whose stderr/stdout progress lines are parsed into structured
// samples.
package fetch
