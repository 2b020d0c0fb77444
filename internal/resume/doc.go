// Package resume persists the reconnect position so a restarted client keeps its
// backoff numbering instead of hammering the peer from attempt one.
package resume
