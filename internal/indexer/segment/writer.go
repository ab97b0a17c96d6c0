package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx snapshot file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 16
	Extension            = ".spdx"
)

// Header is the 64-byte header written at the start of every snapshot.
// Offsets are absolute file positions.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DocsOffset int64
	DocsSize   int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
}

// DictEntry maps a term to its postings offset (relative to the postings
// block), length, and document frequency.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// FileName is the snapshot name for idx. It depends only on the index
// content, so rebuilding an unchanged corpus rewrites the same file.
func FileName(idx *index.Index) string {
	return "idx_" + idx.Fingerprint()[:16] + Extension
}

// Encode serialises idx. Identical indexes encode to identical bytes.
func Encode(idx *index.Index) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))

	docsData, err := json.Marshal(idx.Documents())
	if err != nil {
		return nil, fmt.Errorf("marshaling documents: %w", err)
	}
	h := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(idx.NumTerms()),
		DocCount:   uint32(idx.TotalDocs()),
		DocsOffset: int64(buf.Len()),
		DocsSize:   int64(len(docsData)),
	}
	buf.Write(docsData)

	h.PostOffset = int64(buf.Len())
	entries := idx.Entries()
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		relativeOffset := int64(buf.Len()) - h.PostOffset
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return nil, fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		buf.Write(postingsData)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: relativeOffset,
			PostLen:    len(postingsData),
			DocFreq:    idx.DocFrequency(entry.Term),
		})
	}
	h.PostSize = int64(buf.Len()) - h.PostOffset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("marshaling dictionary: %w", err)
	}
	h.DictOffset = int64(buf.Len())
	h.DictSize = int64(len(dictData))
	buf.Write(dictData)

	data := buf.Bytes()
	putHeader(data[:HeaderSize], h)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(data)))
	return append(data, footer...), nil
}

func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DictSize))
}

// Writer writes index snapshots into a directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes snapshots into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates the snapshot file for idx and returns its name.
// It writes to a .tmp file first and renames on success.
func (w *Writer) Write(idx *index.Index) (string, error) {
	data, err := Encode(idx)
	if err != nil {
		return "", err
	}
	name := FileName(idx)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	return name, nil
}
