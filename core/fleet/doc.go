// Package fleet holds the engine's last-known view of every vehicle, fed by
// asynchronous telemetry pushes, and estimates per-vehicle daily mileage
// from odometer history.
package fleet
