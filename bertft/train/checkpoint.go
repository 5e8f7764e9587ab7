package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/model"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"

	"github.com/google/uuid"
)

// Checkpointer writes model weights, run configuration and vocabulary
// together whenever a new best is found, so the checkpoint directory always
// corresponds to one complete (best_epoch, best_metric) snapshot.
type Checkpointer struct {
	dir   string
	runID string
	vocab *tokenizer.Vocab
}

// RunInfo is the configuration half of a checkpoint.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	Task       string    `json:"task"`
	BestEpoch  int       `json:"best_epoch"`
	BestMetric float64   `json:"best_metric"`
	GlobalStep int       `json:"global_step"`
	SavedAt    time.Time `json:"saved_at"`
}

func NewCheckpointer(dir string, vocab *tokenizer.Vocab) (*Checkpointer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Checkpointer{dir: dir, runID: uuid.NewString(), vocab: vocab}, nil
}

func (c *Checkpointer) RunID() string { return c.runID }

// Save writes all three artifacts. Each file lands via write-to-temp plus
// rename, so an interrupt between epochs never leaves a torn artifact.
func (c *Checkpointer) Save(head *model.LinearHead, info RunInfo) error {
	info.RunID = c.runID
	info.SavedAt = time.Now().UTC()

	weights, err := json.Marshal(head)
	if err != nil {
		return fmt.Errorf("marshal head weights: %w", err)
	}
	if err := c.writeAtomic(internal.WeightsName, weights); err != nil {
		return err
	}

	cfg, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run info: %w", err)
	}
	if err := c.writeAtomic(internal.ConfigName, cfg); err != nil {
		return err
	}

	var vocabData []byte
	for _, tok := range c.vocab.Tokens() {
		vocabData = append(vocabData, tok...)
		vocabData = append(vocabData, '\n')
	}
	return c.writeAtomic(internal.VocabName, vocabData)
}

// LoadHead restores head weights from a checkpoint directory.
func LoadHead(dir string) (*model.LinearHead, error) {
	data, err := os.ReadFile(filepath.Join(dir, internal.WeightsName))
	if err != nil {
		return nil, fmt.Errorf("read head weights: %w", err)
	}
	var head model.LinearHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("unmarshal head weights: %w", err)
	}
	head.ResetOptimizer()
	return &head, nil
}

// LoadRunInfo restores the run configuration from a checkpoint directory.
func LoadRunInfo(dir string) (RunInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, internal.ConfigName))
	if err != nil {
		return RunInfo{}, fmt.Errorf("read run info: %w", err)
	}
	var info RunInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return RunInfo{}, fmt.Errorf("unmarshal run info: %w", err)
	}
	return info, nil
}

func (c *Checkpointer) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
