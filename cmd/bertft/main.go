package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/config"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/dataset"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/extract"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/metrics"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/model"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/train"
)

func main() {
	var (
		mode       = flag.String("mode", "train", "train or extract")
		configPath = flag.String("config", "", "path to config file")
	)
	flag.Parse()

	logger := internal.GetLogger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "train":
		err = runTrain(ctx, cfg)
	case "extract":
		err = runExtract(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("mode", *mode).Msg("run failed")
	}
}

func buildTokenizer(cfg *config.Config) (tokenizer.Tokenizer, *tokenizer.Vocab, error) {
	vocab, err := tokenizer.LoadVocab(cfg.Model.VocabPath)
	if err != nil {
		return nil, nil, err
	}
	if sp, err := tokenizer.NewSugarWordPiece(cfg.Model.VocabPath, cfg.Encoding.DoLowerCase); err == nil {
		return sp, vocab, nil
	}
	return tokenizer.NewWordPiece(vocab, cfg.Encoding.DoLowerCase), vocab, nil
}

func truncationMode(cfg *config.Config) encoding.TruncationMode {
	if strings.EqualFold(cfg.Encoding.Truncation, "strict") {
		return encoding.Strict
	}
	return encoding.Lenient
}

func runTrain(ctx context.Context, cfg *config.Config) error {
	logger := internal.GetLogger()

	tok, vocab, err := buildTokenizer(cfg)
	if err != nil {
		return err
	}
	seq := encoding.New(encoding.Config{
		MaxLen:     cfg.Encoding.MaxSeqLength,
		Truncation: truncationMode(cfg),
		MaskCLS:    cfg.Encoding.MaskCLS,
	}, tok)

	encoder, err := model.NewEncoder(cfg.Model.Provider, cfg.Model.ModelPath,
		cfg.Model.NumLayers, cfg.Model.HiddenSize)
	if err != nil {
		return err
	}

	proc, err := dataset.ForTask(cfg.Task.Name)
	if err != nil {
		return err
	}
	numOutputs := len(proc.Labels())
	if proc.OutputMode() == dataset.Regression {
		numOutputs = 1
	}
	rng := rand.New(rand.NewSource(cfg.Train.Seed))
	head := model.NewLinearHead(numOutputs, cfg.Model.HiddenSize, cfg.Model.NumLayers-1, rng)

	ckpt, err := train.NewCheckpointer(cfg.Task.OutputDir, vocab)
	if err != nil {
		return err
	}

	var opts []train.Option
	trainExamples, err := proc.TrainExamples(cfg.Task.DataDir)
	if err != nil {
		return err
	}
	var devExamples []encoding.Example
	if ms, ok := proc.(*dataset.MsmarcoProcessor); ok {
		var refs []metrics.QueryDoc
		devExamples, refs, err = ms.DevCandidates(cfg.Task.DataDir)
		if err != nil {
			return err
		}
		rel, err := metrics.LoadRelevanceIndex(cfg.Task.QrelsPath)
		if err != nil {
			return err
		}
		opts = append(opts, train.WithRanking(rel, refs))
	} else {
		devExamples, err = proc.DevExamples(cfg.Task.DataDir)
		if err != nil {
			return err
		}
	}

	ctrl, err := train.NewController(train.Config{
		TaskName:                  cfg.Task.Name,
		TrainBatchSize:            cfg.Train.TrainBatchSize,
		EvalBatchSize:             cfg.Train.EvalBatchSize,
		LearningRate:              cfg.Train.LearningRate,
		WarmupProportion:          cfg.Train.WarmupProportion,
		GradientAccumulationSteps: cfg.Train.GradientAccumulationSteps,
		NumEpochs:                 cfg.Train.NumTrainEpochs,
		Patience:                  cfg.Train.Patience,
		Threshold:                 cfg.Train.Threshold,
		FreezeEncoder:             cfg.Train.FreezeEncoder,
		OutputDir:                 cfg.Task.OutputDir,
	}, seq, encoder, head, proc, ckpt, opts...)
	if err != nil {
		return err
	}

	bestEpoch, bestMetric, err := ctrl.Run(ctx, trainExamples, devExamples)
	if err != nil {
		return err
	}
	logger.Info().
		Str("task", cfg.Task.Name).
		Int("bestEpoch", bestEpoch).
		Float64("bestMetric", bestMetric).
		Msg("training finished")
	return nil
}

func runExtract(ctx context.Context, cfg *config.Config) error {
	tok, _, err := buildTokenizer(cfg)
	if err != nil {
		return err
	}
	encoder, err := model.NewEncoder(cfg.Model.Provider, cfg.Model.ModelPath,
		cfg.Model.NumLayers, cfg.Model.HiddenSize)
	if err != nil {
		return err
	}
	layers, err := config.ParseLayers(cfg.Extract.Layers, encoder.NumLayers())
	if err != nil {
		return err
	}
	store, err := extract.OpenStore(cfg.Extract.StoreDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	p := extract.NewPipeline(extract.Config{
		InputFile:  cfg.Extract.InputFile,
		Layers:     layers,
		MaxLen:     cfg.Encoding.MaxSeqLength,
		MaxWorkers: cfg.Extract.Workers,
	}, tok, encoder, store)

	n, err := p.Run(ctx)
	if err != nil {
		return err
	}
	logger := internal.GetLogger()
	logger.Info().Int("examples", n).Str("store", cfg.Extract.StoreDSN).Msg("extraction finished")
	return nil
}
