// Package telegram is the chat-facing surface of the bot. It turns
// incoming links into probe results and quality keyboards, admits and
// starts download jobs on user choice, streams progress back by editing
// a status message, and hands finished files to the delivery router.
package telegram
