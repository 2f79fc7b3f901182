// Package booking is the thin boundary that turns urgent or predicted
// service needs into member-facing offers and feeds accept, decline and
// reschedule outcomes back into stall reservation and the priority queue.
package booking
