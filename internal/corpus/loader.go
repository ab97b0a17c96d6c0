package corpus

import (
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Mode selects how the loader reacts to a bad record.
type Mode int

const (
	// ModeLenient drops bad records and reports them.
	ModeLenient Mode = iota
	// ModeStrict aborts the whole load on the first bad record.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "lenient"
}

// ParseMode accepts "strict" or "lenient" (empty means lenient).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return ModeLenient, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeLenient, fmt.Errorf("%w: unknown load mode %q", apperrors.ErrInvalidInput, s)
	}
}

// Rejection describes one record the loader refused. For duplicates, Index
// is the first rejected occurrence and Count the number of rejected copies.
type Rejection struct {
	Index    int    `json:"index"`
	Location string `json:"location"`
	Reason   string `json:"reason"`
	Count    int    `json:"count,omitempty"`
}

// BuildReport summarises one load and, once the index builder has run, the
// size of the resulting index.
type BuildReport struct {
	Records    int         `json:"records"`
	Documents  int         `json:"documents"`
	AnchorOnly int         `json:"anchor_only"`
	Terms      int         `json:"terms"`
	Postings   int         `json:"postings"`
	Skipped    []Rejection `json:"skipped"`
	Duplicates []Rejection `json:"duplicates"`
	Empty      bool        `json:"empty"`
	Mode       string      `json:"mode"`
	DurationMs int64       `json:"duration_ms"`
}

// RecordError is returned by strict loads. It unwraps to
// ErrMalformedRecord or ErrDuplicateKey.
type RecordError struct {
	Index    int
	Location string
	Reason   string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%q): %s: %s", e.Index, e.Location, e.Err.Error(), e.Reason)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Load validates records in order and assigns dense IDs to the survivors.
// In strict mode the first failure is returned and no documents are produced.
func Load(records []Record, mode Mode) ([]Document, *BuildReport, error) {
	logger := slog.Default().With("component", "corpus-loader")
	report := &BuildReport{
		Records:    len(records),
		Skipped:    make([]Rejection, 0),
		Duplicates: make([]Rejection, 0),
		Mode:       mode.String(),
	}
	docs := make([]Document, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dupIndex := make(map[string]int)

	for i, rec := range records {
		doc, reason := validate(rec)
		if reason != "" {
			if mode == ModeStrict {
				return nil, nil, &RecordError{Index: i, Location: rec.Location, Reason: reason, Err: apperrors.ErrMalformedRecord}
			}
			report.Skipped = append(report.Skipped, Rejection{Index: i, Location: rec.Location, Reason: reason})
			logger.Debug("record skipped", "index", i, "location", rec.Location, "reason", reason)
			continue
		}
		if _, dup := seen[doc.Location]; dup {
			if mode == ModeStrict {
				return nil, nil, &RecordError{Index: i, Location: doc.Location, Reason: "location already loaded", Err: apperrors.ErrDuplicateKey}
			}
			if at, ok := dupIndex[doc.Location]; ok {
				report.Duplicates[at].Count++
			} else {
				dupIndex[doc.Location] = len(report.Duplicates)
				report.Duplicates = append(report.Duplicates, Rejection{
					Index:    i,
					Location: doc.Location,
					Reason:   "location already loaded",
					Count:    1,
				})
			}
			continue
		}
		seen[doc.Location] = struct{}{}
		doc.ID = len(docs)
		if doc.AnchorOnly {
			report.AnchorOnly++
		}
		docs = append(docs, doc)
	}

	report.Documents = len(docs)
	report.Empty = len(docs) == 0
	if len(report.Skipped) > 0 || len(report.Duplicates) > 0 {
		logger.Warn("records rejected",
			"skipped", len(report.Skipped),
			"duplicates", len(report.Duplicates),
		)
	}
	return docs, report, nil
}

// validate normalises a record and returns a non-empty reason if it must be
// rejected.
func validate(rec Record) (Document, string) {
	location := rec.Location
	if strings.TrimSpace(location) == "" {
		return Document{}, "location is required"
	}
	category, ok := ParseCategory(rec.Category)
	if !ok {
		if strings.TrimSpace(rec.Category) == "" {
			return Document{}, "category is required"
		}
		return Document{}, fmt.Sprintf("unknown category %q", rec.Category)
	}
	title := strings.TrimSpace(rec.Title)
	if title == "" && (category != CategoryPage || rec.Text != "") {
		return Document{}, "title is required unless the record is a bare page anchor"
	}
	return Document{
		Location:   location,
		Page:       strings.TrimSpace(rec.Page),
		Title:      title,
		Category:   category,
		Text:       rec.Text,
		AnchorOnly: IsAnchorOnly(title, rec.Text),
	}, ""
}
