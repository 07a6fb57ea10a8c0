// Package notifications announces finished runs via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. The workflow only
// sees the NotifyRun method, so other transports can be added behind the same
// Service interface.
package notifications
