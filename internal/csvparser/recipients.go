package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// TriggerRow is a single user extracted from a bulk trigger CSV.
// UserID is taken from the "user_id" column (case-insensitive).
// Fields contains all other columns (header -> value) and becomes the event payload.
type TriggerRow struct {
	UserID string
	Fields map[string]string
}

// ParseTriggerRows parses a CSV from an io.Reader. The CSV must contain a header row
// with a "user_id" column (case-insensitive). All other columns are returned as Fields.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseTriggerRows(r io.Reader, maxRows int) ([]TriggerRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	normalized, index := normalizeHeaders(headers)
	userIdx, ok := index["user_id"]
	if !ok {
		return nil, errors.New("csv must contain a user_id column")
	}

	if maxRows <= 0 {
		maxRows = 1000
	}

	rows := make([]TriggerRow, 0)
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		userID := strings.TrimSpace(record[userIdx])
		if userID == "" {
			continue
		}

		fields := make(map[string]string, len(headers)-1)
		for i := range record {
			if i == userIdx {
				continue
			}
			key := normalized[i]
			if key == "" {
				continue
			}
			fields[key] = strings.TrimSpace(record[i])
		}

		rows = append(rows, TriggerRow{
			UserID: userID,
			Fields: fields,
		})
	}

	if len(rows) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return rows, nil
}

// Payload converts the row's fields into an event payload.
func (r TriggerRow) Payload() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}
