package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"customerterm/internal/customers"
)

// ImportResult summarizes a CSV import operation.
type ImportResult struct {
	Created int
	Updated int
	Skipped int
	Errors  []string
}

// ImportCustomersCSV ingests customers from a CSV reader. The header row
// selects columns; "name" (or "display_name") is required. Rows carrying an
// "id" update that customer, the rest are inserted with a fresh id.
func (s *Store) ImportCustomersCSV(ctx context.Context, r io.Reader, defaultCreator string, loc *time.Location) (ImportResult, error) {
	result := ImportResult{}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			index[key] = i
		}
	}
	nameIdx, ok := index["name"]
	if !ok {
		if nameIdx, ok = index["display_name"]; !ok {
			return result, fmt.Errorf("csv missing 'name' column")
		}
	}
	if loc == nil {
		loc = time.Local
	}
	field := func(record []string, key string) string {
		if idx, ok := index[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			result.Skipped++
			continue
		}
		if nameIdx >= len(record) || strings.TrimSpace(record[nameIdx]) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: customer name required", row))
			result.Skipped++
			continue
		}
		c := customers.Customer{
			ID:          field(record, "id"),
			DisplayName: strings.TrimSpace(record[nameIdx]),
			Phone:       field(record, "phone"),
			Email:       field(record, "email"),
			Company:     field(record, "company"),
			Address:     field(record, "address"),
			Creator:     field(record, "creator"),
		}
		if c.Creator == "" {
			c.Creator = defaultCreator
		}
		if c.Creator == "" {
			c.Creator = "Import"
		}
		if stamp := field(record, "created_at"); stamp != "" {
			if parsed, ok := parseImportTime(stamp, loc); ok {
				c.CreatedAt = parsed
			}
		}
		updating := false
		if c.IsNew() {
			c.ID = uuid.NewString()
			c.PhotoURL = customers.PlaceholderPhoto
		} else {
			existing, err := s.CustomerByID(ctx, c.ID)
			switch {
			case err == nil:
				updating = true
				c.PhotoURL = existing.PhotoURL
			case errors.Is(err, ErrNotFound):
				c.PhotoURL = customers.PlaceholderPhoto
			default:
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
				result.Skipped++
				continue
			}
		}
		if err := s.SaveItem(ctx, &c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			result.Skipped++
			continue
		}
		if updating {
			result.Updated++
		} else {
			result.Created++
		}
	}
	return result, nil
}

func parseImportTime(value string, loc *time.Location) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}
