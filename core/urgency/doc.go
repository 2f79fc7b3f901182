// Package urgency scores how due each depot service is for each vehicle and
// orders the resulting needs into the depot-wide priority queue. Scoring is
// a pure function of telemetry and the threshold catalog; the queue ordering
// is the contract shared with the allocator and the booking layer.
package urgency
