// Package engine runs the periodic depot scheduling scan. Each pass scores
// the fleet, admits arriving vehicles into service pipelines, allocates
// stalls in priority order, advances pipeline progress and refreshes the
// demand and energy outlook. Scans never overlap: a trigger arriving while
// a pass is running is skipped.
package engine
