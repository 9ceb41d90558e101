package llm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/use-agent/pagepipe/models"
)

// StripCodeFence removes a surrounding ``` or ```json fence some models add
// despite being told not to.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = strings.TrimPrefix(t, "json")
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// NormalizeRecords parses a model reply into records ordered by schema.
//
//   - a JSON array is the record list;
//   - an object with a "posts" array uses that array;
//   - any other JSON value yields zero records.
//
// Elements that are not JSON objects are skipped. Empty output fails with
// NO_CONTENT_EXTRACTED and invalid JSON with EXTRACTION_PARSE_FAILED.
func NormalizeRecords(raw string, schema models.RecordSchema) ([]models.Record, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return nil, models.NewScrapeError(models.ErrCodeNoContent, "model returned no content", nil)
	}
	if !json.Valid([]byte(cleaned)) {
		return nil, models.NewScrapeError(models.ErrCodeExtractionParse, "model output is not valid JSON", nil)
	}

	var elems []json.RawMessage
	switch cleaned[0] {
	case '[':
		if err := json.Unmarshal([]byte(cleaned), &elems); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExtractionParse, "model output is not a JSON array", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExtractionParse, "model output is not a JSON object", err)
		}
		if list, ok := obj[models.RecordsKey]; ok && isKind(list, '[') {
			if err := json.Unmarshal(list, &elems); err != nil {
				return nil, models.NewScrapeError(models.ErrCodeExtractionParse, "records list is malformed", err)
			}
		}
	}

	records := make([]models.Record, 0, len(elems))
	for i, elem := range elems {
		if !isKind(elem, '{') {
			slog.Debug("skipping non-object record", "index", i)
			continue
		}
		rec := models.NewRecord()
		if err := json.Unmarshal(elem, rec); err != nil {
			slog.Debug("skipping unreadable record", "index", i, "error", err)
			continue
		}
		records = append(records, models.OrderRecord(schema, rec))
	}
	return records, nil
}

func isKind(raw json.RawMessage, open byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == open
}
