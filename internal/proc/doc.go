package proc

// Package proc supervises external processes (yt-dlp, ffmpeg): it spawns a
// command, exposes its combined output as a line stream, captures a stderr
// tail for diagnostics, and guarantees the process tree is reaped.
