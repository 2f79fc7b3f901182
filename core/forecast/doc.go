// Package forecast projects hourly depot demand against expected stall
// capacity for the next 24 hours and prices charge sessions against the
// time-of-day energy schedule. Deficits are an observable condition, not an
// error: a queued vehicle shows up here, nowhere else.
package forecast
