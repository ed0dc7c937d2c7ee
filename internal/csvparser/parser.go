package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"PulseTrigger/internal/models"
)

var templateColumns = []string{"id", "name", "trigger_type", "delay_hours", "subject", "body"}

// ParseTemplatesFile opens path and parses it with ParseTemplates.
func ParseTemplatesFile(path string) ([]models.EmailTemplate, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseTemplates(f)
}

// ParseTemplates reads campaign templates from CSV. The header row must contain
// id, name, trigger_type, delay_hours, subject and body (any order,
// case-insensitive). Row order is kept, it defines the campaign order.
func ParseTemplates(r io.Reader) ([]models.EmailTemplate, error) {

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, errors.New("csv must contain header and at least one row")
	}

	_, idx := normalizeHeaders(records[0])
	for _, col := range templateColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv missing column %q", col)
		}
	}

	var tpls []models.EmailTemplate
	seen := make(map[string]struct{})

	for n, row := range records[1:] {
		line := n + 2

		if len(row) != len(records[0]) {
			continue // skip malformed row
		}

		id := strings.TrimSpace(row[idx["id"]])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty template id", line)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate template id %q", line, id)
		}
		seen[id] = struct{}{}

		tt, err := models.ParseTriggerType(strings.TrimSpace(row[idx["trigger_type"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		delay, err := strconv.ParseFloat(strings.TrimSpace(row[idx["delay_hours"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: delay_hours: %w", line, err)
		}
		if delay < 0 {
			return nil, fmt.Errorf("line %d: delay_hours must not be negative", line)
		}

		tpls = append(tpls, models.EmailTemplate{
			ID:          id,
			Name:        strings.TrimSpace(row[idx["name"]]),
			TriggerType: tt,
			DelayHours:  delay,
			Subject:     row[idx["subject"]],
			Body:        row[idx["body"]],
		})
	}

	if len(tpls) == 0 {
		return nil, errors.New("csv must contain at least one valid row")
	}

	return tpls, nil
}
