package index

// Field identifies which part of a document a posting came from.
type Field uint8

const (
	FieldTitle Field = iota
	FieldCategory
	FieldText
)

// NumFields is the number of indexed fields.
const NumFields = 3

// Fields lists every indexed field in posting order.
var Fields = [NumFields]Field{FieldTitle, FieldCategory, FieldText}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldCategory:
		return "category"
	case FieldText:
		return "text"
	default:
		return "unknown"
	}
}

// Posting records how often, and where, a term occurs in one field of one
// document.
type Posting struct {
	DocID     int   `json:"d"`
	Field     Field `json:"f"`
	Frequency int   `json:"n"`
	Positions []int `json:"p"`
}

// PostingList is ordered by DocID, then Field.
type PostingList []Posting

type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// DocIDs returns the distinct document IDs of the list, ascending.
func (pl PostingList) DocIDs() []int {
	ids := make([]int, 0, len(pl))
	for _, p := range pl {
		if n := len(ids); n == 0 || ids[n-1] != p.DocID {
			ids = append(ids, p.DocID)
		}
	}
	return ids
}

// ForDoc returns the sub-slice of postings belonging to docID. The list is
// sorted, so this is a binary search followed by a short scan.
func (pl PostingList) ForDoc(docID int) PostingList {
	lo, hi := 0, len(pl)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if pl[mid].DocID < docID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	end := lo
	for end < len(pl) && pl[end].DocID == docID {
		end++
	}
	return pl[lo:end]
}
