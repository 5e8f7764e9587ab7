package metrics

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// SyntheticDocID pads candidate pools to the fixed size. Synthetic documents
// occupy ranking slots but never earn credit.
const SyntheticDocID = int64(0)

// CandidatePoolSize is the fixed per-query candidate count the ranking
// metric assumes.
const CandidatePoolSize = 1000

// ErrCandidatePoolMismatch reports a query whose candidate pool is not
// exactly CandidatePoolSize rows. Scoring unequal pools silently biases the
// metric, so this is fatal.
var ErrCandidatePoolMismatch = fmt.Errorf("candidate pool size mismatch")

// QueryDoc identifies one scored candidate row.
type QueryDoc struct {
	QueryID int64
	DocID   int64
}

// RelevanceIndex is a read-only query -> relevant-docs mapping, built once
// by the caller and injected into MRRAt10.
type RelevanceIndex map[int64]*roaring.Bitmap

// Relevant reports whether docID is judged relevant for queryID.
func (r RelevanceIndex) Relevant(queryID, docID int64) bool {
	bm, ok := r[queryID]
	return ok && docID >= 0 && bm.Contains(uint32(docID))
}

// Add records one relevant pair.
func (r RelevanceIndex) Add(queryID, docID int64) {
	bm, ok := r[queryID]
	if !ok {
		bm = roaring.New()
		r[queryID] = bm
	}
	bm.Add(uint32(docID))
}

// LoadRelevanceIndex reads a qrels file of whitespace/tab-delimited
// (query_id, _, doc_id, ...) rows.
func LoadRelevanceIndex(path string) (RelevanceIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open qrels: %w", err)
	}
	defer f.Close()

	idx := make(RelevanceIndex)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		qid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("qrels query id %q: %w", fields[0], err)
		}
		did, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("qrels doc id %q: %w", fields[2], err)
		}
		idx.Add(qid, did)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read qrels: %w", err)
	}
	return idx, nil
}

type scoredDoc struct {
	docID int64
	score float64
}

// MRRAt10 computes Mean Reciprocal Rank over the top 10 ranked candidates
// per query. scores[i] is the predicted relevance of rows[i]. Every query
// must have exactly CandidatePoolSize rows (synthetic padding included). A
// query with no entry in the index contributes 0.
func MRRAt10(scores []float64, rows []QueryDoc, rel RelevanceIndex) (float64, error) {
	if len(scores) != len(rows) {
		return 0, fmt.Errorf("%d scores for %d rows", len(scores), len(rows))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	byQuery := make(map[int64][]scoredDoc)
	for i, row := range rows {
		byQuery[row.QueryID] = append(byQuery[row.QueryID], scoredDoc{docID: row.DocID, score: scores[i]})
	}
	for qid, docs := range byQuery {
		if len(docs) != CandidatePoolSize {
			return 0, fmt.Errorf("%w: query %d has %d candidates, want %d",
				ErrCandidatePoolMismatch, qid, len(docs), CandidatePoolSize)
		}
	}

	var sum float64
	for qid, docs := range byQuery {
		sort.SliceStable(docs, func(a, b int) bool { return docs[a].score > docs[b].score })
		for rank := 0; rank < 10 && rank < len(docs); rank++ {
			d := docs[rank]
			if d.docID == SyntheticDocID {
				continue
			}
			if rel.Relevant(qid, d.docID) {
				sum += 1 / float64(rank+1)
				break
			}
		}
	}
	return sum / float64(len(byQuery)), nil
}
