// Package train drives the fine-tuning loop: batching through the sequence
// encoder, gradient accumulation with a linear warmup schedule, per-epoch
// evaluation, and threshold/patience-based checkpoint selection.
package train

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/dataset"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/metrics"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/model"

	"github.com/rs/zerolog"
)

// Config holds the training hyperparameters.
type Config struct {
	TaskName                  string
	TrainBatchSize            int
	EvalBatchSize             int
	LearningRate              float64
	WarmupProportion          float64
	GradientAccumulationSteps int
	NumEpochs                 int
	Patience                  int
	Threshold                 float64
	FreezeEncoder             bool
	OutputDir                 string
}

// State is the controller's mutable training state. It is owned exclusively
// by the controller and mutated only at optimizer steps (GlobalStep) and at
// epoch boundaries (BestMetric, BestEpoch).
type State struct {
	Epoch      int
	GlobalStep int
	BestMetric float64
	BestEpoch  int
}

// Improvement classifies one evaluation result against the running best.
type Improvement int

const (
	NotImproved Improvement = iota
	// Improved is a borderline better epoch: below the threshold but above
	// the previous best. It still checkpoints and resets patience.
	Improved
	// ConfirmedImproved cleared the threshold.
	ConfirmedImproved
)

// Controller runs the Init -> (TrainEpoch <-> Evaluate) -> Stopped loop.
type Controller struct {
	cfg     Config
	seq     *encoding.Encoder
	encoder model.Encoder
	head    *model.LinearHead
	proc    dataset.Processor
	ckpt    *Checkpointer
	rel     metrics.RelevanceIndex
	devRefs []metrics.QueryDoc
	log     zerolog.Logger

	labelMap map[string]int
	state    State
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithRanking wires the relevance index and the per-row (query, doc) ids for
// ranking evaluation; required for the msmarco task.
func WithRanking(rel metrics.RelevanceIndex, refs []metrics.QueryDoc) Option {
	return func(c *Controller) {
		c.rel = rel
		c.devRefs = refs
	}
}

// WithLogger overrides the default logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func NewController(cfg Config, seq *encoding.Encoder, enc model.Encoder, head *model.LinearHead,
	proc dataset.Processor, ckpt *Checkpointer, opts ...Option) (*Controller, error) {
	if cfg.GradientAccumulationSteps < 1 {
		return nil, fmt.Errorf("gradient accumulation steps must be >= 1, got %d", cfg.GradientAccumulationSteps)
	}
	labelMap := make(map[string]int)
	for i, l := range proc.Labels() {
		labelMap[l] = i
	}
	c := &Controller{
		cfg:      cfg,
		seq:      seq,
		encoder:  enc,
		head:     head,
		proc:     proc,
		ckpt:     ckpt,
		log:      internal.GetLogger(),
		labelMap: labelMap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if strings.EqualFold(cfg.TaskName, "msmarco") && c.rel == nil {
		return nil, fmt.Errorf("msmarco requires a relevance index")
	}
	return c, nil
}

// State returns a copy of the current training state.
func (c *Controller) State() State { return c.state }

// Run trains on train and evaluates on dev after every epoch, stopping at
// NumEpochs or when patience runs out. Returns the best epoch and metric.
// Cancelling ctx between batches aborts cleanly; the last checkpoint stays
// intact.
func (c *Controller) Run(ctx context.Context, train, dev []encoding.Example) (int, float64, error) {
	totalSteps := c.totalOptimizationSteps(len(train))
	c.log.Info().
		Int("examples", len(train)).
		Int("batch_size", c.cfg.TrainBatchSize).
		Int("steps", totalSteps).
		Msg("running training")

	for epoch := 0; epoch < c.cfg.NumEpochs; epoch++ {
		c.state.Epoch = epoch
		loss, err := c.trainEpoch(ctx, train, totalSteps)
		if err != nil {
			return c.state.BestEpoch, c.state.BestMetric, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		metric, err := c.Evaluate(ctx, dev)
		if err != nil {
			return c.state.BestEpoch, c.state.BestMetric, fmt.Errorf("evaluate epoch %d: %w", epoch, err)
		}
		c.log.Info().Int("epoch", epoch).Float64("loss", loss).Float64("metric", metric).Msg("epoch done")

		if imp := c.considerCandidate(metric); imp != NotImproved {
			c.state.BestMetric = metric
			c.state.BestEpoch = epoch
			if err := c.ckpt.Save(c.head, RunInfo{
				Task:       c.cfg.TaskName,
				BestEpoch:  epoch,
				BestMetric: metric,
				GlobalStep: c.state.GlobalStep,
			}); err != nil {
				return c.state.BestEpoch, c.state.BestMetric, fmt.Errorf("checkpoint: %w", err)
			}
			if imp == Improved {
				c.log.Info().Int("epoch", epoch).Msg("borderline improvement, checkpointed")
			}
		}
		if epoch-c.state.BestEpoch >= c.cfg.Patience {
			c.log.Info().Int("epoch", epoch).Int("best_epoch", c.state.BestEpoch).Msg("patience exhausted")
			break
		}
	}

	c.log.Info().Int("best_epoch", c.state.BestEpoch).Float64("best_metric", c.state.BestMetric).Msg("training stopped")
	if err := c.writeEvalResults(); err != nil {
		c.log.Warn().Err(err).Msg("could not write eval results")
	}
	return c.state.BestEpoch, c.state.BestMetric, nil
}

// considerCandidate merges the confirmed and borderline improvement
// branches into one decision: any improvement updates the best and resets
// patience, the threshold only decides whether it counts as confirmed.
func (c *Controller) considerCandidate(metric float64) Improvement {
	switch {
	case metric >= c.state.BestMetric+c.cfg.Threshold:
		return ConfirmedImproved
	case metric > c.state.BestMetric:
		return Improved
	default:
		return NotImproved
	}
}

func (c *Controller) totalOptimizationSteps(numExamples int) int {
	batches := int(math.Ceil(float64(numExamples) / float64(c.cfg.TrainBatchSize)))
	steps := batches / c.cfg.GradientAccumulationSteps * c.cfg.NumEpochs
	if steps < 1 {
		steps = 1
	}
	return steps
}

func (c *Controller) trainEpoch(ctx context.Context, examples []encoding.Example, totalSteps int) (float64, error) {
	var epochLoss float64
	batchCount := 0
	for start := 0; start < len(examples); start += c.cfg.TrainBatchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		end := start + c.cfg.TrainBatchSize
		if end > len(examples) {
			end = len(examples)
		}
		loss, err := c.trainBatch(ctx, examples[start:end])
		if err != nil {
			return 0, err
		}
		epochLoss += loss
		batchCount++

		if batchCount%c.cfg.GradientAccumulationSteps == 0 {
			progress := float64(c.state.GlobalStep) / float64(totalSteps)
			lr := c.cfg.LearningRate * WarmupLinear(progress, c.cfg.WarmupProportion)
			c.head.Step(lr)
			if !c.cfg.FreezeEncoder {
				if tr, ok := c.encoder.(model.Trainable); ok {
					tr.ApplyGradients(lr)
					tr.ZeroGrad()
				}
			}
			c.state.GlobalStep++
		}
	}
	return epochLoss, nil
}

// trainBatch accumulates gradients for one mini-batch. The per-example
// gradient carries the 1/(batch*accumulation) factor up front so the grads
// summed over the accumulation window average correctly.
func (c *Controller) trainBatch(ctx context.Context, batch []encoding.Example) (float64, error) {
	scale := 1.0 / (float64(len(batch)) * float64(c.cfg.GradientAccumulationSteps))
	var batchLoss float64
	for _, ex := range batch {
		pooled, target, err := c.forwardExample(ctx, ex)
		if err != nil {
			return 0, err
		}
		logits := c.head.Forward(pooled)

		var loss float64
		var grad []float64
		if c.proc.OutputMode() == dataset.Regression {
			loss, grad = model.SquaredErrorLoss(logits[0], target)
		} else {
			loss, grad = model.CrossEntropyLoss(logits, int(target))
		}
		for i := range grad {
			grad[i] *= scale
		}
		c.head.Backward(pooled, grad)
		batchLoss += loss * scale
	}
	return batchLoss, nil
}

func (c *Controller) forwardExample(ctx context.Context, ex encoding.Example) ([]float64, float64, error) {
	batch, err := c.seq.EncodeExample(ex)
	if err != nil {
		return nil, 0, err
	}
	layers, err := c.encoder.Encode(ctx, batch)
	if err != nil {
		return nil, 0, fmt.Errorf("encoder: %w", err)
	}
	pooled, err := c.head.Pool(layers, batch)
	if err != nil {
		return nil, 0, err
	}
	target, err := c.labelTarget(ex.Label)
	if err != nil {
		return nil, 0, err
	}
	return pooled, target, nil
}

func (c *Controller) labelTarget(label string) (float64, error) {
	if c.proc.OutputMode() == dataset.Regression {
		v, err := strconv.ParseFloat(label, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: regression label %q", dataset.ErrMalformedRecord, label)
		}
		return v, nil
	}
	idx, ok := c.labelMap[label]
	if !ok {
		return 0, fmt.Errorf("%w: label %q", dataset.ErrMalformedRecord, label)
	}
	return float64(idx), nil
}

// Evaluate runs the full dev set without touching gradients and returns the
// task's selection metric.
func (c *Controller) Evaluate(ctx context.Context, dev []encoding.Example) (float64, error) {
	preds := make([]int, 0, len(dev))
	labels := make([]int, 0, len(dev))
	scores := make([]float64, 0, len(dev))
	regPreds := make([]float64, 0)
	regLabels := make([]float64, 0)

	for _, ex := range dev {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		pooled, target, err := c.forwardExample(ctx, ex)
		if err != nil {
			return 0, err
		}
		logits := c.head.Forward(pooled)
		if c.proc.OutputMode() == dataset.Regression {
			regPreds = append(regPreds, logits[0])
			regLabels = append(regLabels, target)
			continue
		}
		probs := model.Softmax(logits)
		scores = append(scores, probs[len(probs)-1])
		preds = append(preds, argmax(logits))
		labels = append(labels, int(target))
	}

	switch strings.ToLower(c.cfg.TaskName) {
	case "msmarco":
		return metrics.MRRAt10(scores, c.devRefs, c.rel)
	case "sts-b":
		return metrics.PearsonSpearman(regPreds, regLabels).Mean, nil
	default:
		return metrics.Accuracy(preds, labels), nil
	}
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func (c *Controller) writeEvalResults() error {
	path := filepath.Join(c.cfg.OutputDir, "eval_results.txt")
	content := fmt.Sprintf("best epoch: %d\nmetric: %g\n", c.state.BestEpoch, c.state.BestMetric)
	return os.WriteFile(path, []byte(content), 0o644)
}
