// Package notifications pushes inbox notifications to an external channel.
//
// The default transport publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. The in-app
// inbox is owned by the service layer; this package only delivers.
package notifications
