package services

import (
	"bytes"
	"encoding/csv"
	"sort"
)

type LongRow struct {
	ParticipantToken string
	Group            string
	QuestionID       string
	Value            string
	SubmittedAt      string // RFC3339 string for CSV simplicity
}

// ExportLongCSV renders rows into a long-format CSV, one answer per line.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"participant", "group", "question_id", "value", "submitted_at"})
	for _, r := range rows {
		rec := []string{r.ParticipantToken, r.Group, r.QuestionID, r.Value, r.SubmittedAt}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders a participant-per-row CSV with one column per
// question. inputs is a map[participantToken]map[questionID]value; columns
// and rows are sorted for stable output.
func ExportWideCSV(inputs map[string]map[string]string) ([]byte, error) {
	colSet := map[string]struct{}{}
	for _, m := range inputs {
		for qid := range m {
			colSet[qid] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for id := range colSet {
		cols = append(cols, id)
	}
	sort.Strings(cols)

	pids := make([]string, 0, len(inputs))
	for pid := range inputs {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"participant"}, cols...)
	_ = w.Write(header)
	for _, pid := range pids {
		row := make([]string, 0, 1+len(cols))
		row = append(row, pid)
		for _, qid := range cols {
			row = append(row, inputs[pid][qid])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
