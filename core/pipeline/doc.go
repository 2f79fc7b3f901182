// Package pipeline drives a vehicle through its ordered depot service steps
// as a state machine. Each pipeline is serialized by its own lock; distinct
// vehicles advance independently. Every transition is appended to the audit
// feed.
package pipeline
