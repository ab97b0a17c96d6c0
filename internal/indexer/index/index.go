package index

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
)

// Index is an immutable inverted index over a document corpus. Once built it
// is never mutated, so any number of readers may share it without locking.
type Index struct {
	docs        []corpus.Document
	postings    map[string]PostingList
	terms       []string
	fieldLen    [][NumFields]int
	numPostings int
	size        int64
	fingerprint string
}

// New assembles an Index from documents with dense IDs and term entries
// sorted by term. Field lengths and document frequencies are derived from
// the postings.
func New(docs []corpus.Document, entries []TermEntry) (*Index, error) {
	for i, d := range docs {
		if d.ID != i {
			return nil, fmt.Errorf("document %d has id %d: ids must be dense", i, d.ID)
		}
	}

	idx := &Index{
		docs:     docs,
		postings: make(map[string]PostingList, len(entries)),
		terms:    make([]string, 0, len(entries)),
		fieldLen: make([][NumFields]int, len(docs)),
	}
	for i, e := range entries {
		if i > 0 && entries[i-1].Term >= e.Term {
			return nil, fmt.Errorf("term %q out of order", e.Term)
		}
		if len(e.Postings) == 0 {
			return nil, fmt.Errorf("term %q has no postings", e.Term)
		}
		for j, p := range e.Postings {
			if p.DocID < 0 || p.DocID >= len(docs) {
				return nil, fmt.Errorf("term %q references unknown document %d", e.Term, p.DocID)
			}
			if int(p.Field) >= NumFields {
				return nil, fmt.Errorf("term %q has invalid field %d", e.Term, p.Field)
			}
			if j > 0 {
				prev := e.Postings[j-1]
				if prev.DocID > p.DocID || (prev.DocID == p.DocID && prev.Field >= p.Field) {
					return nil, fmt.Errorf("term %q postings out of order", e.Term)
				}
			}
			idx.fieldLen[p.DocID][p.Field] += p.Frequency
			idx.size += int64(len(p.Positions)*8 + 32)
		}
		idx.postings[e.Term] = e.Postings
		idx.terms = append(idx.terms, e.Term)
		idx.numPostings += len(e.Postings)
		idx.size += int64(len(e.Term) + 48)
	}
	idx.fingerprint = computeFingerprint(docs, entries)
	return idx, nil
}

// Empty returns an index with no documents.
func Empty() *Index {
	idx, _ := New(nil, nil)
	return idx
}

// Empty reports whether the index holds no documents.
func (x *Index) Empty() bool { return len(x.docs) == 0 }

// TotalDocs counts every document, anchor-only ones included.
func (x *Index) TotalDocs() int { return len(x.docs) }

// Doc returns the document with the given id.
func (x *Index) Doc(id int) (corpus.Document, bool) {
	if id < 0 || id >= len(x.docs) {
		return corpus.Document{}, false
	}
	return x.docs[id], true
}

// Documents returns a copy of the document table in id order.
func (x *Index) Documents() []corpus.Document {
	out := make([]corpus.Document, len(x.docs))
	copy(out, x.docs)
	return out
}

// Postings returns the posting list for term, or nil. The returned list is
// shared and must not be modified.
func (x *Index) Postings(term string) PostingList {
	return x.postings[term]
}

// DocFrequency is the number of distinct documents containing term in any
// field.
func (x *Index) DocFrequency(term string) int {
	pl := x.postings[term]
	n := 0
	for i, p := range pl {
		if i == 0 || pl[i-1].DocID != p.DocID {
			n++
		}
	}
	return n
}

// FieldLength is the number of tokens doc has in field.
func (x *Index) FieldLength(docID int, f Field) int {
	if docID < 0 || docID >= len(x.fieldLen) || int(f) >= NumFields {
		return 0
	}
	return x.fieldLen[docID][f]
}

// Terms returns the vocabulary in ascending order.
func (x *Index) Terms() []string {
	out := make([]string, len(x.terms))
	copy(out, x.terms)
	return out
}

// TermsWithPrefix returns every vocabulary term starting with prefix, in
// ascending order.
func (x *Index) TermsWithPrefix(prefix string) []string {
	start := sort.SearchStrings(x.terms, prefix)
	end := start
	for end < len(x.terms) && strings.HasPrefix(x.terms[end], prefix) {
		end++
	}
	out := make([]string, end-start)
	copy(out, x.terms[start:end])
	return out
}

// Entries returns the term entries in term order. Posting lists are shared.
func (x *Index) Entries() []TermEntry {
	out := make([]TermEntry, len(x.terms))
	for i, t := range x.terms {
		out[i] = TermEntry{Term: t, Postings: x.postings[t]}
	}
	return out
}

func (x *Index) NumTerms() int    { return len(x.terms) }
func (x *Index) NumPostings() int { return x.numPostings }

// Size is a rough estimate of the index's memory footprint in bytes.
func (x *Index) Size() int64 { return x.size }

// Fingerprint is a stable hash of the documents and postings. Two indexes
// built from the same corpus have the same fingerprint.
func (x *Index) Fingerprint() string { return x.fingerprint }

func computeFingerprint(docs []corpus.Document, entries []TermEntry) string {
	h := sha256.New()
	var buf []byte
	for _, d := range docs {
		buf = binary.AppendUvarint(buf[:0], uint64(d.ID))
		h.Write(buf)
		for _, s := range []string{d.Location, d.Page, d.Title, d.Category.String(), d.Text} {
			h.Write([]byte(s))
			h.Write([]byte{0})
		}
	}
	h.Write([]byte{1})
	for _, e := range entries {
		h.Write([]byte(e.Term))
		h.Write([]byte{0})
		for _, p := range e.Postings {
			buf = binary.AppendUvarint(buf[:0], uint64(p.DocID))
			buf = append(buf, byte(p.Field))
			buf = binary.AppendUvarint(buf, uint64(p.Frequency))
			for _, pos := range p.Positions {
				buf = binary.AppendUvarint(buf, uint64(pos))
			}
			h.Write(buf)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
