// Package notify is the notification inbox feature component.
//
// It is a consumer of the channel, not part of it: the inbox caches
// notifications as they arrive, drives the unread badge, and keeps serving
// the cached view while the channel is disconnected.
package notify
