// Package export renders engine snapshots for dashboards and offline
// analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// WriteQueueJSON writes the priority queue to w in JSON format.
func WriteQueueJSON(w io.Writer, queue []model.ServiceNeed) error {
	type entry struct {
		VehicleID string    `json:"vehicle_id"`
		Service   string    `json:"service"`
		Urgency   float64   `json:"urgency"`
		Overdue   bool      `json:"overdue"`
		Reason    string    `json:"reason"`
		Predicted time.Time `json:"predicted_need"`
	}
	out := make([]entry, 0, len(queue))
	for _, n := range queue {
		out = append(out, entry{
			VehicleID: n.VehicleID,
			Service:   n.Type.String(),
			Urgency:   n.Urgency,
			Overdue:   n.Overdue,
			Reason:    n.Reason,
			Predicted: n.PredictedNeed,
		})
	}
	return json.NewEncoder(w).Encode(out)
}

// WriteQueueCSV writes the priority queue to w in CSV format.
func WriteQueueCSV(w io.Writer, queue []model.ServiceNeed) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle_id", "service", "urgency", "overdue", "predicted_need"}); err != nil {
		return err
	}
	for _, n := range queue {
		rec := []string{
			n.VehicleID,
			n.Type.String(),
			strconv.FormatFloat(n.Urgency, 'f', 1, 64),
			strconv.FormatBool(n.Overdue),
			n.PredictedNeed.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDemandCSV writes the demand forecast to w in CSV format.
func WriteDemandCSV(w io.Writer, windows []model.DemandWindow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hour", "needed", "available", "deficit"}); err != nil {
		return err
	}
	for _, d := range windows {
		rec := []string{
			d.Hour,
			strconv.Itoa(d.Needed),
			strconv.Itoa(d.Available),
			strconv.Itoa(d.Deficit),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
