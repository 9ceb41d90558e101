// Package sink persists pipeline results and reports them to the user.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/use-agent/pagepipe/models"
)

// recordsDocument is the JSON artifact for a structured result.
type recordsDocument struct {
	Posts           []literalRecord `json:"posts"`
	ExtractionError string          `json:"extraction_error,omitempty"`
	RawMarkdown     *string         `json:"raw_markdown,omitempty"`
}

// Encode renders result in format.
//
// Text is the markdown verbatim. JSON is {"posts": [...]} with two-space
// indent; a result without records (degraded or markdown-only) still yields
// a document with an empty "posts" list plus the markdown and any error.
func Encode(result *models.PipelineResult, format models.OutputFormat) ([]byte, error) {
	if result == nil || !result.Succeeded {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "only successful results can be persisted", nil)
	}

	switch format {
	case models.FormatText, "":
		if result.RawMarkdown == nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "result has no markdown to write as text", nil)
		}
		return []byte(*result.RawMarkdown), nil

	case models.FormatJSON:
		doc := recordsDocument{Posts: make([]literalRecord, 0, len(result.ExtractedRecords))}
		for _, rec := range result.ExtractedRecords {
			doc.Posts = append(doc.Posts, literalRecord{rec})
		}
		if result.ExtractedRecords == nil {
			doc.RawMarkdown = result.RawMarkdown
		}
		if result.Degraded != nil {
			doc.ExtractionError = result.Degraded.Error()
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInternal, "cannot encode records", err)
		}
		return buf.Bytes(), nil
	}
	return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown output format %q", format), nil)
}

// literalRecord encodes a record in field order without escaping &, < and >.
// The ordered map's own MarshalJSON always escapes them.
type literalRecord struct {
	rec models.Record
}

func (r literalRecord) MarshalJSON() ([]byte, error) {
	if r.rec == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for pair := r.rec.Oldest(); pair != nil; pair = pair.Next() {
		if pair != r.rec.Oldest() {
			buf.WriteByte(',')
		}
		if err := encodeLiteral(&buf, pair.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeLiteral(&buf, pair.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeLiteral(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // trailing newline from Encode
	return nil
}

// FileSink writes results to the local filesystem.
type FileSink struct{}

// NewFileSink returns a FileSink.
func NewFileSink() *FileSink { return &FileSink{} }

// Persist writes result to dest.Path. The parent directory must exist. The
// file appears atomically: it is written next to the target and renamed.
func (s *FileSink) Persist(result *models.PipelineResult, dest models.OutputDestination) error {
	data, err := Encode(result, dest.Format)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(dest.Path, data, 0o644); err != nil {
		return models.NewScrapeError(models.ErrCodeIOWrite, fmt.Sprintf("cannot write %s", dest.Path), err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MemorySink keeps the last persisted result and its encoding in memory.
// It serves callers that return results over the wire instead of to disk.
type MemorySink struct {
	mu     sync.Mutex
	result *models.PipelineResult
	data   []byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Persist(result *models.PipelineResult, dest models.OutputDestination) error {
	data, err := Encode(result, dest.Format)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.data = result, data
	return nil
}

// Last returns the most recently persisted result and its encoding.
func (s *MemorySink) Last() (*models.PipelineResult, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.data
}

// DeriveDefaultFilename names the output after the URL's host (port
// included): dots become underscores and the format's extension is added.
func DeriveDefaultFilename(targetURL string, format models.OutputFormat) (string, error) {
	u, err := models.ValidateTargetURL(targetURL)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(u.Host, ".", "_") + format.Extension(), nil
}

// ResolveDestination uses explicit when given and derives a name otherwise.
func ResolveDestination(targetURL, explicit string, format models.OutputFormat) (models.OutputDestination, error) {
	if explicit != "" {
		return models.OutputDestination{Path: explicit, Format: format}, nil
	}
	name, err := DeriveDefaultFilename(targetURL, format)
	if err != nil {
		return models.OutputDestination{}, err
	}
	return models.OutputDestination{Path: name, Format: format}, nil
}
