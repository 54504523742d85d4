// Package export writes optimization results in formats consumed by
// operators and downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"

	"github.com/kilianp07/railsched/core/model"
)

// ErrUntrusted is returned when asked to export the schedule of a failed run.
var ErrUntrusted = errors.New("export: result did not succeed, schedule is not usable")

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"position", "train_id", "section_id", "entry_time", "exit_time", "delay_added"}

// WriteJSON writes the full result to w.
func WriteJSON(w io.Writer, res model.OptimizationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per scheduled section visit, trains in service
// order. Failed results are refused.
func WriteCSV(w io.Writer, res model.OptimizationResult) error {
	sched, ok := res.TrustedSchedule()
	if !ok {
		return ErrUntrusted
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for pos, id := range Order(res) {
		for _, v := range sched[id] {
			rec := []string{
				strconv.Itoa(pos + 1),
				id,
				v.SectionID,
				v.Entry.String(),
				v.Exit.String(),
				strconv.FormatFloat(v.DelayAdded, 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Order returns the service order of res. Results without an explicit order
// fall back to the schedule keys sorted by id.
func Order(res model.OptimizationResult) []string {
	if len(res.Order) > 0 {
		return res.Order
	}
	ids := make([]string, 0, len(res.Schedule))
	for id := range res.Schedule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
