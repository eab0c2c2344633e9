// Package commands holds the bot's chat commands.
//
// Public commands read the posting store and manage the caller's
// subscription. Owner-only commands run a cycle on demand, correct discovery
// dates and report status.
package commands
