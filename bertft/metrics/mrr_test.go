package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pool builds a full candidate pool for one query: nReal scored documents
// with ids 1..nReal (descending scores), padded to CandidatePoolSize with
// synthetic zero-score entries.
func pool(qid int64, nReal int) ([]float64, []QueryDoc) {
	scores := make([]float64, 0, CandidatePoolSize)
	rows := make([]QueryDoc, 0, CandidatePoolSize)
	for i := 0; i < nReal; i++ {
		scores = append(scores, float64(nReal-i))
		rows = append(rows, QueryDoc{QueryID: qid, DocID: int64(i + 1)})
	}
	for len(rows) < CandidatePoolSize {
		scores = append(scores, 0)
		rows = append(rows, QueryDoc{QueryID: qid, DocID: SyntheticDocID})
	}
	return scores, rows
}

func TestMRRAt10_RelevantAtRankOne(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 1)
	rel.Add(2, 1)

	s1, r1 := pool(1, 10)
	s2, r2 := pool(2, 10)
	mrr, err := MRRAt10(append(s1, s2...), append(r1, r2...), rel)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mrr, 1e-12)
}

func TestMRRAt10_RelevantOutsideTop10(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 11) // rank 11, outside the scan window

	scores, rows := pool(1, 20)
	mrr, err := MRRAt10(scores, rows, rel)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mrr)
}

func TestMRRAt10_ReciprocalRankAndMean(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 1) // rank 1 -> 1.0
	rel.Add(2, 3) // rank 3 -> 1/3

	s1, r1 := pool(1, 10)
	s2, r2 := pool(2, 10)
	mrr, err := MRRAt10(append(s1, s2...), append(r1, r2...), rel)
	require.NoError(t, err)
	assert.InDelta(t, (1.0+1.0/3.0)/2.0, mrr, 1e-12)
}

func TestMRRAt10_FirstHitOnly(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 2)
	rel.Add(1, 5) // second relevant doc must not add credit

	scores, rows := pool(1, 10)
	mrr, err := MRRAt10(scores, rows, rel)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mrr, 1e-12)
}

func TestMRRAt10_QueryWithoutJudgmentsContributesZero(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 1)

	s1, r1 := pool(1, 10)
	s2, r2 := pool(2, 10) // query 2 absent from the index
	mrr, err := MRRAt10(append(s1, s2...), append(r1, r2...), rel)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mrr, 1e-12)
}

func TestMRRAt10_PoolMismatchIsFatal(t *testing.T) {
	rel := make(RelevanceIndex)
	scores := []float64{1, 2}
	rows := []QueryDoc{{QueryID: 1, DocID: 1}, {QueryID: 1, DocID: 2}}

	_, err := MRRAt10(scores, rows, rel)
	assert.ErrorIs(t, err, ErrCandidatePoolMismatch)
}

func TestMRRAt10_SyntheticDocsEarnNoCredit(t *testing.T) {
	rel := make(RelevanceIndex)
	rel.Add(1, 0) // judging the sentinel id must still not score

	scores, rows := pool(1, 5)
	mrr, err := MRRAt10(scores, rows, rel)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mrr)
}

func TestLoadRelevanceIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qrels.tsv")
	require.NoError(t, os.WriteFile(path, []byte("3\t0\t77\t1\n3\t0\t78\t1\n9\t0\t5\t1\n"), 0o644))

	idx, err := LoadRelevanceIndex(path)
	require.NoError(t, err)
	assert.True(t, idx.Relevant(3, 77))
	assert.True(t, idx.Relevant(3, 78))
	assert.True(t, idx.Relevant(9, 5))
	assert.False(t, idx.Relevant(9, 77))
	assert.False(t, idx.Relevant(4, 77))
}
