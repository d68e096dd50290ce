// Package ingest loads normalized-record exports from disk. City portals
// hand these out in whatever format the portal speaks, so the loader accepts
// JSON, YAML, CSV, and XLSX and maps the common header variants onto the
// record schema. Columns it does not recognize are preserved in the payload.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/openings-cli/internal/model"
)

// fieldAliases maps canonical record fields to the column names seen across
// open-data exports. Matching is case-insensitive; the first alias present
// in a row wins.
var fieldAliases = map[string][]string{
	"id":            {"id", "record_id", "permit_number", "license_id", "inspection_id"},
	"city":          {"city"},
	"dataset":       {"dataset", "source"},
	"address":       {"address", "street_address", "site_address", "location_address"},
	"business_name": {"business_name", "doing_business_as_name", "dba_name", "name", "legal_name"},
	"type":          {"type", "record_type", "permit_type", "license_description", "application_type", "inspection_type", "title"},
	"status":        {"status", "license_status", "permit_status", "application_status", "results"},
	"description":   {"description", "work_description", "detail", "violations"},
	"event_date":    {"event_date", "date", "issue_date", "issued_date", "license_start_date", "inspection_date", "application_date", "posted_date"},
	"lat":           {"lat", "latitude"},
	"lon":           {"lon", "lng", "longitude"},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseFile reads records from path, dispatching on the file extension. The
// city and dataset arguments fill records whose rows carry neither column.
// Rows without an address are skipped and counted, not fatal.
func ParseFile(path, city, dataset string) ([]model.NormalizedRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: open file")
	}
	defer f.Close()

	var rows []map[string]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		rows, err = parseJSON(f)
	case ".yaml", ".yml":
		rows, err = parseYAML(f)
	case ".csv":
		rows, err = parseCSV(f)
	case ".xlsx":
		rows, err = parseXLSX(path)
	default:
		return nil, 0, eris.Errorf("ingest: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.NormalizedRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, ok := rowToRecord(row, city, dataset)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		zap.L().Warn("ingest: rows without address skipped",
			zap.String("file", path),
			zap.Int("skipped", skipped))
	}
	return records, skipped, nil
}

func parseJSON(r io.Reader) ([]map[string]string, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "ingest: decode json")
	}
	return stringifyRows(raw), nil
}

func parseYAML(r io.Reader) ([]map[string]string, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "ingest: decode yaml")
	}
	return stringifyRows(raw), nil
}

func parseCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		row := make(map[string]string, len(header))
		for i, v := range rec {
			if i < len(header) && strings.TrimSpace(v) != "" {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseXLSX reads the first sheet, treating row one as the header.
func parseXLSX(path string) ([]map[string]string, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := wb.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = normalizeHeader(cell.String())
	}

	var rows []map[string]string
	for _, sr := range sheet.Rows[1:] {
		row := make(map[string]string, len(header))
		for i, cell := range sr.Cells {
			if i >= len(header) {
				break
			}
			if v := strings.TrimSpace(cell.String()); v != "" {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func stringifyRows(raw []map[string]any) []map[string]string {
	rows := make([]map[string]string, 0, len(raw))
	for _, m := range raw {
		row := make(map[string]string, len(m))
		for k, v := range m {
			if v == nil {
				continue
			}
			var s string
			switch t := v.(type) {
			case string:
				s = strings.TrimSpace(t)
			case float64:
				s = strconv.FormatFloat(t, 'f', -1, 64)
			case int:
				s = strconv.Itoa(t)
			case bool:
				s = strconv.FormatBool(t)
			default:
				s = fmt.Sprint(t)
			}
			if s != "" {
				row[normalizeHeader(k)] = s
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.TrimPrefix(h, "\ufeff")
}

// rowToRecord maps one parsed row onto a NormalizedRecord. Returns false when
// the row has no address. Columns consumed by the mapping are removed; the
// rest become the payload.
func rowToRecord(row map[string]string, city, dataset string) (model.NormalizedRecord, bool) {
	take := func(field string) string {
		for _, alias := range fieldAliases[field] {
			if v, ok := row[alias]; ok {
				delete(row, alias)
				return v
			}
		}
		return ""
	}

	rec := model.NormalizedRecord{
		ID:           take("id"),
		City:         take("city"),
		Dataset:      take("dataset"),
		Address:      take("address"),
		BusinessName: take("business_name"),
		Type:         take("type"),
		Status:       take("status"),
		Description:  take("description"),
	}
	if rec.Address == "" {
		return model.NormalizedRecord{}, false
	}
	if rec.City == "" {
		rec.City = city
	}
	if rec.Dataset == "" {
		rec.Dataset = dataset
	}

	if raw := take("event_date"); raw != "" {
		if d, ok := parseDate(raw); ok {
			rec.EventDate = &d
		}
	}
	if lat, err := strconv.ParseFloat(take("lat"), 64); err == nil {
		if lon, lonErr := strconv.ParseFloat(take("lon"), 64); lonErr == nil {
			rec.Lat, rec.Lon = &lat, &lon
		}
	}
	if len(row) > 0 {
		rec.Payload = row
	}
	return rec, true
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}
