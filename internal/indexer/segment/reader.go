package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Read loads the snapshot at path.
func Read(path string) (*index.Index, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("opening snapshot file: %w", err)
	}
	idx, h, err := Decode(data)
	if err != nil {
		return nil, Header{}, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
	}
	return idx, h, nil
}

// Decode verifies and parses an encoded snapshot. Every structural failure
// wraps ErrSnapshotCorrupt.
func Decode(data []byte) (*index.Index, Header, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, Header{}, corrupt("file too short (%d bytes)", len(data))
	}
	body := data[:len(data)-FooterSize]
	footer := data[len(data)-FooterSize:]
	if magic := binary.LittleEndian.Uint32(footer[4:8]); magic != MagicBytes {
		return nil, Header{}, corrupt("bad footer magic %x", magic)
	}
	if n := binary.LittleEndian.Uint64(footer[8:16]); n != uint64(len(body)) {
		return nil, Header{}, corrupt("length mismatch: footer says %d, have %d", n, len(body))
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(body) {
		return nil, Header{}, corrupt("checksum mismatch")
	}

	h := readHeader(body[:HeaderSize])
	if h.Magic != MagicBytes {
		return nil, Header{}, corrupt("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, Header{}, corrupt("unsupported version %d", h.Version)
	}
	docsBytes, err := section(body, h.DocsOffset, h.DocsSize)
	if err != nil {
		return nil, Header{}, err
	}
	postBytes, err := section(body, h.PostOffset, h.PostSize)
	if err != nil {
		return nil, Header{}, err
	}
	dictBytes, err := section(body, h.DictOffset, h.DictSize)
	if err != nil {
		return nil, Header{}, err
	}

	var docs []corpus.Document
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, Header{}, corrupt("parsing documents: %v", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, Header{}, corrupt("parsing dictionary: %v", err)
	}
	if len(docs) != int(h.DocCount) || len(dict) != int(h.TermCount) {
		return nil, Header{}, corrupt("header counts do not match contents")
	}

	entries := make([]index.TermEntry, 0, len(dict))
	for _, d := range dict {
		raw, err := section(postBytes, d.PostOffset, int64(d.PostLen))
		if err != nil {
			return nil, Header{}, err
		}
		var postings index.PostingList
		if err := json.Unmarshal(raw, &postings); err != nil {
			return nil, Header{}, corrupt("parsing postings for term %q: %v", d.Term, err)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}

	idx, err := index.New(docs, entries)
	if err != nil {
		return nil, Header{}, corrupt("%v", err)
	}
	return idx, h, nil
}

// Latest returns the path of the most recently written snapshot in dir, or
// an ErrNotFound error if there is none.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: snapshot directory %s", apperrors.ErrNotFound, dir)
		}
		return "", fmt.Errorf("reading snapshot directory: %w", err)
	}
	type candidate struct {
		name string
		mod  int64
	}
	found := make([]candidate, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{name: entry.Name(), mod: info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w: no snapshot in %s", apperrors.ErrNotFound, dir)
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].mod != found[j].mod {
			return found[i].mod > found[j].mod
		}
		return found[i].name < found[j].name
	})
	return filepath.Join(dir, found[0].name), nil
}

func readHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

func section(b []byte, off, size int64) ([]byte, error) {
	if off < 0 || size < 0 || off > int64(len(b)) || size > int64(len(b))-off {
		return nil, corrupt("section [%d,+%d) out of range", off, size)
	}
	return b[off : off+size], nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}
