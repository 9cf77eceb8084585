// Package bot adapts Telegram updates to intake events and renders the
// engine's replies as Telegram messages and keyboards.
package bot
