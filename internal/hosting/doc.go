// Package hosting uploads oversized output files to a filebin-style
// pastebin for files and returns a shareable link, used when the file
// exceeds the inline upload ceiling of the messaging transport.
package hosting
