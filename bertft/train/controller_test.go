package train

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/dataset"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/model"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct{ mode dataset.OutputMode }

func (s *stubProcessor) TrainExamples(string) ([]encoding.Example, error) { return nil, nil }
func (s *stubProcessor) DevExamples(string) ([]encoding.Example, error)   { return nil, nil }
func (s *stubProcessor) Labels() []string                                 { return []string{"0", "1"} }
func (s *stubProcessor) OutputMode() dataset.OutputMode                   { return s.mode }

func testVocab() *tokenizer.Vocab {
	return tokenizer.NewVocab([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "aa", "bb"})
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	vocab := testVocab()
	tok := tokenizer.NewWordPiece(vocab, false)
	seq := encoding.New(encoding.Config{MaxLen: 8}, tok)
	enc := model.NewHashEncoder(2, 8)
	head := model.NewLinearHead(2, 8, 1, rand.New(rand.NewSource(42)))
	ckpt, err := NewCheckpointer(cfg.OutputDir, vocab)
	require.NoError(t, err)
	proc := &stubProcessor{mode: dataset.Classification}
	c, err := NewController(cfg, seq, enc, head, proc, ckpt)
	require.NoError(t, err)
	return c
}

func classificationExamples() []encoding.Example {
	var out []encoding.Example
	for i := 0; i < 4; i++ {
		out = append(out,
			encoding.Example{TextA: "aa aa aa", Label: "0"},
			encoding.Example{TextA: "bb bb bb", Label: "1"},
		)
	}
	return out
}

func TestConsiderCandidate(t *testing.T) {
	c := &Controller{cfg: Config{Threshold: 0.01}}
	c.state.BestMetric = 0.5

	assert.Equal(t, ConfirmedImproved, c.considerCandidate(0.51))
	assert.Equal(t, ConfirmedImproved, c.considerCandidate(0.9))
	assert.Equal(t, Improved, c.considerCandidate(0.505))
	assert.Equal(t, NotImproved, c.considerCandidate(0.5))
	assert.Equal(t, NotImproved, c.considerCandidate(0.4))
}

func TestPatienceWalkthrough(t *testing.T) {
	// metric sequence 0.5, 0.51, 0.50, 0.49 with patience=2, threshold=0.01:
	// best epoch stays 1, training stops after epoch 3.
	c := &Controller{cfg: Config{Patience: 2, Threshold: 0.01}}

	seq := []float64{0.5, 0.51, 0.50, 0.49}
	stoppedAfter := -1
	for epoch, metric := range seq {
		c.state.Epoch = epoch
		if c.considerCandidate(metric) != NotImproved {
			c.state.BestMetric = metric
			c.state.BestEpoch = epoch
		}
		if epoch-c.state.BestEpoch >= c.cfg.Patience {
			stoppedAfter = epoch
			break
		}
	}

	assert.Equal(t, 3, stoppedAfter)
	assert.Equal(t, 1, c.state.BestEpoch)
	assert.InDelta(t, 0.51, c.state.BestMetric, 1e-12)
}

func TestRun_LearnsSeparableTask(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{
		TaskName:                  "sst-2",
		TrainBatchSize:            2,
		EvalBatchSize:             1,
		LearningRate:              0.2,
		WarmupProportion:          0.1,
		GradientAccumulationSteps: 1,
		NumEpochs:                 25,
		Patience:                  25,
		Threshold:                 0.005,
		OutputDir:                 dir,
	})

	examples := classificationExamples()
	bestEpoch, bestMetric, err := c.Run(context.Background(), examples, examples)
	require.NoError(t, err)

	assert.Equal(t, 1.0, bestMetric, "two deterministic clusters are linearly separable")
	assert.GreaterOrEqual(t, bestEpoch, 0)

	// checkpoint holds all three artifacts for the best epoch
	for _, name := range []string{"head_weights.json", "run_config.json", "vocab.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "eval_results.txt"))
	assert.NoError(t, err)

	info, err := LoadRunInfo(dir)
	require.NoError(t, err)
	assert.Equal(t, bestEpoch, info.BestEpoch)
	assert.Equal(t, bestMetric, info.BestMetric)
	assert.NotEmpty(t, info.RunID)

	head, err := LoadHead(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, head.NumOutputs)
	assert.Equal(t, 8, head.Hidden)
}

func TestRun_CancelBetweenBatches(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{
		TaskName:                  "sst-2",
		TrainBatchSize:            2,
		LearningRate:              0.1,
		GradientAccumulationSteps: 1,
		NumEpochs:                 3,
		Patience:                  3,
		OutputDir:                 dir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Run(ctx, classificationExamples(), classificationExamples())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_AccumulationCountsSteps(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Config{
		TaskName:                  "sst-2",
		TrainBatchSize:            2,
		LearningRate:              0.1,
		WarmupProportion:          0.1,
		GradientAccumulationSteps: 2,
		NumEpochs:                 1,
		Patience:                  1,
		OutputDir:                 dir,
	})

	examples := classificationExamples() // 8 examples -> 4 batches -> 2 steps
	_, _, err := c.Run(context.Background(), examples, examples)
	require.NoError(t, err)
	assert.Equal(t, 2, c.State().GlobalStep)
}

func TestNewController_MsmarcoRequiresIndex(t *testing.T) {
	dir := t.TempDir()
	vocab := testVocab()
	tok := tokenizer.NewWordPiece(vocab, false)
	seq := encoding.New(encoding.Config{MaxLen: 8}, tok)
	enc := model.NewHashEncoder(2, 8)
	head := model.NewLinearHead(2, 8, 1, rand.New(rand.NewSource(1)))
	ckpt, err := NewCheckpointer(dir, vocab)
	require.NoError(t, err)

	_, err = NewController(Config{TaskName: "msmarco", GradientAccumulationSteps: 1},
		seq, enc, head, &stubProcessor{}, ckpt)
	assert.Error(t, err)
}
