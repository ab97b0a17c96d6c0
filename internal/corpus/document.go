package corpus

// Document is a validated record. ID is the dense ingestion-order index used
// by postings; Location is the only identity exposed outside the engine.
type Document struct {
	ID         int      `json:"id"`
	Location   string   `json:"location"`
	Page       string   `json:"page"`
	Title      string   `json:"title"`
	Category   Category `json:"category"`
	Text       string   `json:"text"`
	AnchorOnly bool     `json:"anchor_only"`
}

// IsAnchorOnly reports whether a record only marks a page or section
// boundary and has nothing to tokenize.
func IsAnchorOnly(title, text string) bool {
	return title == "" && text == ""
}
