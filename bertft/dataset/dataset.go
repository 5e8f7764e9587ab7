// Package dataset reads task corpora into examples. Each supported task has
// one Processor implementation, selected by name; unknown names fail at
// startup, not per example.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
)

// OutputMode is how the task head and loss interpret labels.
type OutputMode int

const (
	Classification OutputMode = iota
	Regression
)

// Processor parses one tabular corpus format.
type Processor interface {
	TrainExamples(dataDir string) ([]encoding.Example, error)
	DevExamples(dataDir string) ([]encoding.Example, error)
	Labels() []string
	OutputMode() OutputMode
}

// ErrUnknownTask reports an unrecognized task name.
var ErrUnknownTask = fmt.Errorf("unknown task")

// ErrMalformedRecord reports a tabular row missing required fields. Training
// readers skip and log these; dev readers fail, since a dropped label
// silently corrupts metrics.
var ErrMalformedRecord = fmt.Errorf("malformed record")

// ForTask returns the processor registered for the lower-cased task name.
func ForTask(name string) (Processor, error) {
	switch strings.ToLower(name) {
	case "qqp":
		return &qqpProcessor{}, nil
	case "qnli":
		return &qnliProcessor{}, nil
	case "snli":
		return &snliProcessor{}, nil
	case "sst-2":
		return &sst2Processor{}, nil
	case "sts-b":
		return &stsbProcessor{}, nil
	case "msmarco":
		return &MsmarcoProcessor{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

var pairLine = regexp.MustCompile(`^(.*) \|\|\| (.*)$`)

// ReadLineExamples reads the feature-extraction input format: one example
// per line, "a ||| b" for a pair, anything else a single sequence. Ids are
// assigned by line order.
func ReadLineExamples(path string) ([]encoding.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var examples []encoding.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ex := encoding.Example{ID: fmt.Sprintf("%d", len(examples))}
		if m := pairLine.FindStringSubmatch(line); m != nil {
			ex.TextA = m[1]
			ex.TextB = m[2]
		} else {
			ex.TextA = line
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return examples, nil
}

// readTSV reads tab-separated rows, skipping the header row.
func readTSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tsv: %w", err)
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		rows = append(rows, strings.Split(scanner.Text(), "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return rows, nil
}

var logger = internal.GetLogger()
