// Package tgui holds small helpers for building Telegram messages in
// ParseMode="HTML". Values of type H are already escaped and can be
// concatenated freely; plain strings go through Esc first.
package tgui
