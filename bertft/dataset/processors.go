package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
)

// strict=false skips and logs malformed rows (training ingestion);
// strict=true fails on them (evaluation ingestion).
type rowParser func(row []string) (encoding.Example, error)

func parseRows(rows [][]string, setType string, strict bool, parse rowParser) ([]encoding.Example, error) {
	examples := make([]encoding.Example, 0, len(rows))
	for i, row := range rows {
		ex, err := parse(row)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			logger.Warn().Int("row", i).Err(err).Msg("skipping malformed record")
			continue
		}
		if ex.ID == "" {
			ex.ID = fmt.Sprintf("%s-%d", setType, i)
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// qqpProcessor reads the QQP question-pair format:
// id, qid1, qid2, question1, question2, is_duplicate.
type qqpProcessor struct{}

func (p *qqpProcessor) Labels() []string       { return []string{"0", "1"} }
func (p *qqpProcessor) OutputMode() OutputMode { return Classification }

func (p *qqpProcessor) parse(row []string) (encoding.Example, error) {
	if len(row) < 6 {
		return encoding.Example{}, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedRecord, len(row))
	}
	label := row[5]
	if label != "0" && label != "1" {
		return encoding.Example{}, fmt.Errorf("%w: label %q", ErrMalformedRecord, label)
	}
	return encoding.Example{ID: row[0], TextA: row[3], TextB: row[4], Label: label}, nil
}

func (p *qqpProcessor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "train.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "train", false, p.parse)
}

func (p *qqpProcessor) DevExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "dev.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "dev", true, p.parse)
}

// qnliProcessor reads the QNLI format: index, question, sentence, label.
type qnliProcessor struct{}

func (p *qnliProcessor) Labels() []string       { return []string{"entailment", "not_entailment"} }
func (p *qnliProcessor) OutputMode() OutputMode { return Classification }

func (p *qnliProcessor) parse(row []string) (encoding.Example, error) {
	if len(row) < 4 {
		return encoding.Example{}, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedRecord, len(row))
	}
	return encoding.Example{ID: row[0], TextA: row[1], TextB: row[2], Label: row[len(row)-1]}, nil
}

func (p *qnliProcessor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "train.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "train", false, p.parse)
}

func (p *qnliProcessor) DevExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "dev.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "dev_matched", true, p.parse)
}

// snliProcessor reads the SNLI distribution format; premises and hypotheses
// carry parse parentheses that are stripped before use.
type snliProcessor struct{}

func (p *snliProcessor) Labels() []string {
	return []string{"neutral", "entailment", "contradiction"}
}
func (p *snliProcessor) OutputMode() OutputMode { return Classification }

var parenStripper = strings.NewReplacer("(", "", ")", "")

func (p *snliProcessor) parse(row []string) (encoding.Example, error) {
	if len(row) < 8 {
		return encoding.Example{}, fmt.Errorf("%w: want 8 fields, got %d", ErrMalformedRecord, len(row))
	}
	if row[0] == "-" {
		return encoding.Example{}, fmt.Errorf("%w: unlabeled pair", ErrMalformedRecord)
	}
	premise := strings.Join(strings.Fields(parenStripper.Replace(row[1])), " ")
	hypothesis := strings.Join(strings.Fields(parenStripper.Replace(row[2])), " ")
	return encoding.Example{ID: row[7], TextA: premise, TextB: hypothesis, Label: row[0]}, nil
}

func (p *snliProcessor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "snli_1.0_train.txt"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "train", false, p.parse)
}

func (p *snliProcessor) DevExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "snli_1.0_dev.txt"))
	if err != nil {
		return nil, err
	}
	// '-' rows are conventionally dropped from SNLI dev sets too
	return parseRows(rows, "dev_matched", false, p.parse)
}

// sst2Processor reads the single-sequence SST-2 format: sentence, label.
type sst2Processor struct{}

func (p *sst2Processor) Labels() []string       { return []string{"0", "1"} }
func (p *sst2Processor) OutputMode() OutputMode { return Classification }

func (p *sst2Processor) parse(row []string) (encoding.Example, error) {
	if len(row) < 2 {
		return encoding.Example{}, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedRecord, len(row))
	}
	return encoding.Example{TextA: row[0], Label: row[1]}, nil
}

func (p *sst2Processor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "train.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "train", false, p.parse)
}

func (p *sst2Processor) DevExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "dev.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "dev", true, p.parse)
}

// stsbProcessor reads the STS-B regression format; the similarity score is
// the last field.
type stsbProcessor struct{}

func (p *stsbProcessor) Labels() []string       { return nil }
func (p *stsbProcessor) OutputMode() OutputMode { return Regression }

func (p *stsbProcessor) parse(row []string) (encoding.Example, error) {
	if len(row) < 10 {
		return encoding.Example{}, fmt.Errorf("%w: want 10 fields, got %d", ErrMalformedRecord, len(row))
	}
	return encoding.Example{ID: row[0], TextA: row[7], TextB: row[8], Label: row[len(row)-1]}, nil
}

func (p *stsbProcessor) TrainExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "train.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "train", false, p.parse)
}

func (p *stsbProcessor) DevExamples(dataDir string) ([]encoding.Example, error) {
	rows, err := readTSV(filepath.Join(dataDir, "dev.tsv"))
	if err != nil {
		return nil, err
	}
	return parseRows(rows, "dev", true, p.parse)
}
