// Package notifier tells operators how an auto-schedule batch went.
//
// It listens for batch-finished events on the bus and sends one short summary
// per batch to a Telegram chat (optionally a forum topic). Delivery is
// send-only: the bot never polls for updates.
//
// Identical summaries for the same job inside the dedup window are suppressed,
// so a sweep that keeps retrying a stuck job does not flood the chat.
package notifier
