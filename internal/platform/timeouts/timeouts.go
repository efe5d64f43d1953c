// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// FeedbackExchange caps the wait for a feedback response from the jailed
// inference process. Model inference on long submissions is slow; callers may
// override per request.
const FeedbackExchange = 120 * time.Second

// JailPing caps a health-check round trip to the jailed process.
const JailPing = 5 * time.Second

// JailShutdown limits how long the parent waits for the jailed process to
// exit after an advisory shutdown message.
const JailShutdown = 10 * time.Second

// SpoolRescan is the polling interval backing up the spool directory watcher.
const SpoolRescan = 30 * time.Second

// Shutdown limits how long a service waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
