// Package notifier delivers cycle reports and command replies to chats.
//
// Delivery goes through a transport.Sender. Failures are isolated per
// recipient: a permanent failure (the recipient blocked the bot, the chat is
// gone) unsubscribes that recipient, while a transient one is counted and
// dropped. Nothing here retries; pacing comes from a token-bucket limiter.
//
// # Rendering
//
// Render turns a CycleReport into exactly one of four Telegram HTML
// templates. It is a pure function and never touches the store or the
// network.
package notifier
