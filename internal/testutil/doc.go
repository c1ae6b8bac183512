// Package testutil provides deterministic fakes shared by package tests and
// the scenario harness: an in-memory alarm facility, a static prayer-time
// provider, an intent recorder, and a sequence ID generator.
package testutil
