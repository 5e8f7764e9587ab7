package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/metrics"
)

// MsmarcoProcessor reads the MSMARCO passage-ranking sample format:
// qid \t query \t docid \t doc \t label, no header row.
type MsmarcoProcessor struct{}

func (p *MsmarcoProcessor) Labels() []string       { return []string{"0", "1"} }
func (p *MsmarcoProcessor) OutputMode() OutputMode { return Classification }

type msmarcoRow struct {
	queryID int64
	query   string
	docID   int64
	doc     string
	label   string
}

func readMsmarcoRows(path string, strict bool) ([]msmarcoRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open msmarco file: %w", err)
	}
	defer f.Close()

	var rows []msmarcoRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\n"), "\t")
		row, err := parseMsmarcoRow(fields)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			logger.Warn().Int("line", lineNo).Err(err).Msg("skipping malformed record")
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read msmarco file: %w", err)
	}
	return rows, nil
}

func parseMsmarcoRow(fields []string) (msmarcoRow, error) {
	if len(fields) < 5 {
		return msmarcoRow{}, fmt.Errorf("%w: want 5 fields, got %d", ErrMalformedRecord, len(fields))
	}
	qid, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return msmarcoRow{}, fmt.Errorf("%w: query id %q", ErrMalformedRecord, fields[0])
	}
	did, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return msmarcoRow{}, fmt.Errorf("%w: doc id %q", ErrMalformedRecord, fields[2])
	}
	return msmarcoRow{queryID: qid, query: fields[1], docID: did, doc: fields[3], label: fields[4]}, nil
}

func (p *MsmarcoProcessor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readMsmarcoRows(filepath.Join(dataDir, "train.tsv"), false)
	if err != nil {
		return nil, err
	}
	examples := make([]encoding.Example, 0, len(rows))
	for i, row := range rows {
		examples = append(examples, encoding.Example{
			ID:    fmt.Sprintf("train-%d", i),
			TextA: row.query,
			TextB: row.doc,
			Label: row.label,
		})
	}
	return examples, nil
}

// DevExamples returns the padded candidate pools flattened into examples.
// Use DevCandidates when the (query, doc) rows are needed for ranking.
func (p *MsmarcoProcessor) DevExamples(dataDir string) ([]encoding.Example, error) {
	examples, _, err := p.DevCandidates(dataDir)
	return examples, err
}

// DevCandidates groups dev docs per query and pads every pool with
// synthetic documents until it holds exactly metrics.CandidatePoolSize
// entries, so each query ranks over the same pool size. The returned rows
// parallel the examples one to one.
func (p *MsmarcoProcessor) DevCandidates(dataDir string) ([]encoding.Example, []metrics.QueryDoc, error) {
	rows, err := readMsmarcoRows(filepath.Join(dataDir, "dev.tsv"), true)
	if err != nil {
		return nil, nil, err
	}

	type candidate struct {
		docID int64
		doc   string
		label string
	}
	pools := make(map[int64][]candidate)
	var order []int64
	queries := make(map[int64]string)
	for _, row := range rows {
		if _, seen := pools[row.queryID]; !seen {
			order = append(order, row.queryID)
			queries[row.queryID] = row.query
		}
		pools[row.queryID] = append(pools[row.queryID], candidate{docID: row.docID, doc: row.doc, label: row.label})
	}

	var examples []encoding.Example
	var refs []metrics.QueryDoc
	for _, qid := range order {
		docs := pools[qid]
		if len(docs) > metrics.CandidatePoolSize {
			return nil, nil, fmt.Errorf("%w: query %d has %d candidates", metrics.ErrCandidatePoolMismatch, qid, len(docs))
		}
		for len(docs) < metrics.CandidatePoolSize {
			docs = append(docs, candidate{docID: metrics.SyntheticDocID, doc: "FAKE DOCUMENT", label: "0"})
		}
		for _, d := range docs {
			examples = append(examples, encoding.Example{
				ID:    fmt.Sprintf("dev-%d-%d", qid, d.docID),
				TextA: queries[qid],
				TextB: d.doc,
				Label: d.label,
			})
			refs = append(refs, metrics.QueryDoc{QueryID: qid, DocID: d.docID})
		}
	}
	return examples, refs, nil
}
