package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/dataset"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/encoding"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/model"
	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/tokenizer"
)

// Config controls a feature extraction run.
type Config struct {
	InputFile  string
	Layers     []int
	MaxLen     int
	MaxWorkers int
}

// Pipeline turns raw sentences into per-word embeddings and persists them.
// Tokenization and alignment fan out across workers; encoder calls and store
// writes stay sequential. For pair inputs the first text's words are
// embedded and the second text serves as context.
type Pipeline struct {
	cfg     Config
	tok     tokenizer.Tokenizer
	encoder model.Encoder
	store   *Store
	asserts *assert.AssertHandler
	logger  zerolog.Logger
}

// encoded carries one prepared example to the encoder stage. Spans are built
// against the unpadded token sequence so padding never lands in a span.
type encoded struct {
	ex    encoding.Example
	batch *encoding.Batch
	spans align.Alignment
}

func NewPipeline(cfg Config, tok tokenizer.Tokenizer, encoder model.Encoder, store *Store) *Pipeline {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	return &Pipeline{
		cfg:     cfg,
		tok:     tok,
		encoder: encoder,
		store:   store,
		asserts: assert.NewAssertHandler(),
		logger:  internal.GetLogger(),
	}
}

// Run reads the input file, embeds every example, and writes the store,
// including the sentence index row. Returns the number of examples written.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	examples, err := dataset.ReadLineExamples(p.cfg.InputFile)
	if err != nil {
		return 0, err
	}
	if len(examples) == 0 {
		return 0, fmt.Errorf("no examples in %s", p.cfg.InputFile)
	}

	enc := encoding.New(encoding.Config{
		MaxLen:     p.cfg.MaxLen,
		Truncation: encoding.Strict,
	}, p.tok)

	items := make([]*encoded, len(examples))
	workers := pool.New().WithMaxGoroutines(p.cfg.MaxWorkers).WithContext(ctx)
	for i, ex := range examples {
		workers.Go(func(ctx context.Context) error {
			item, err := p.prepare(ctx, enc, ex)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return 0, err
	}

	index := make(map[string]string, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		layers, err := p.encoder.Encode(ctx, item.batch)
		if err != nil {
			return 0, fmt.Errorf("encode example %s: %w", item.ex.ID, err)
		}
		emb, err := align.Aggregate(item.spans, layers, p.cfg.Layers)
		if err != nil {
			return 0, fmt.Errorf("aggregate example %s: %w", item.ex.ID, err)
		}
		if err := p.store.Put(item.ex.ID, emb); err != nil {
			return 0, err
		}
		index[indexKey(item.ex)] = item.ex.ID
	}
	if err := p.store.PutSentenceIndex(index); err != nil {
		return 0, err
	}
	p.logger.Info().Int("examples", len(items)).Ints("layers", p.cfg.Layers).Msg("extraction complete")
	return len(items), nil
}

// prepare encodes one example and builds its word alignment.
func (p *Pipeline) prepare(ctx context.Context, enc *encoding.Encoder, ex encoding.Example) (*encoded, error) {
	batch, err := enc.EncodeExample(ex)
	if err != nil {
		return nil, fmt.Errorf("encode example %s: %w", ex.ID, err)
	}
	spans := align.Align(strings.Fields(ex.TextA), p.tok)
	seqLen := 0
	for _, m := range batch.AttentionMask {
		seqLen += int(m)
	}
	if err := spans.Validate(seqLen); err != nil {
		return nil, fmt.Errorf("align example %s: %w", ex.ID, err)
	}
	if ex.TextB == "" {
		p.asserts.Assert(ctx, spans.NumSubwords() == seqLen-2,
			"alignment must cover every non-marker position")
	}
	return &encoded{ex: ex, batch: batch, spans: spans}, nil
}

// indexKey reproduces the sentence key an extraction consumer looks up by:
// the raw text, with " ||| " joining pairs.
func indexKey(ex encoding.Example) string {
	if ex.TextB != "" {
		return ex.TextA + " ||| " + ex.TextB
	}
	return ex.TextA
}
