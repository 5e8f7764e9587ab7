package config

import (
	"fmt"
	"strings"

	internal "github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Task     TaskConfig     `mapstructure:"task"`
	Encoding EncodingConfig `mapstructure:"encoding"`
	Train    TrainConfig    `mapstructure:"train"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Model    ModelConfig    `mapstructure:"model"`
}

// TaskConfig selects the dataset, label set and metric.
type TaskConfig struct {
	Name      string `mapstructure:"name"`
	DataDir   string `mapstructure:"dataDir"`
	OutputDir string `mapstructure:"outputDir"`
	QrelsPath string `mapstructure:"qrelsPath"`
}

// EncodingConfig controls sequence-to-batch encoding.
type EncodingConfig struct {
	MaxSeqLength int    `mapstructure:"maxSeqLength"`
	Truncation   string `mapstructure:"truncation"` // "strict" or "lenient"
	MaskCLS      bool   `mapstructure:"maskCls"`
	DoLowerCase  bool   `mapstructure:"doLowerCase"`
}

// TrainConfig controls the fine-tuning loop.
type TrainConfig struct {
	TrainBatchSize             int     `mapstructure:"trainBatchSize"`
	EvalBatchSize              int     `mapstructure:"evalBatchSize"`
	LearningRate               float64 `mapstructure:"learningRate"`
	WarmupProportion           float64 `mapstructure:"warmupProportion"`
	GradientAccumulationSteps  int     `mapstructure:"gradientAccumulationSteps"`
	NumTrainEpochs             int     `mapstructure:"numTrainEpochs"`
	Patience                   int     `mapstructure:"patience"`
	Threshold                  float64 `mapstructure:"threshold"`
	FreezeEncoder              bool    `mapstructure:"freezeEncoder"`
	Seed                       int64   `mapstructure:"seed"`
}

// ExtractConfig controls the feature-extraction path.
type ExtractConfig struct {
	BatchSize int    `mapstructure:"batchSize"`
	Layers    string `mapstructure:"layers"` // comma-separated, negatives count from the end
	InputFile string `mapstructure:"inputFile"`
	StoreDSN  string `mapstructure:"storeDsn"`
	Workers   int    `mapstructure:"workers"`
}

// ModelConfig describes the external encoder collaborator.
type ModelConfig struct {
	Provider   string `mapstructure:"provider"` // "hash" or "onnx"
	ModelPath  string `mapstructure:"modelPath"`
	VocabPath  string `mapstructure:"vocabPath"`
	HiddenSize int    `mapstructure:"hiddenSize"`
	NumLayers  int    `mapstructure:"numLayers"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("encoding.maxSeqLength", 128)
	viper.SetDefault("encoding.truncation", "lenient")
	viper.SetDefault("encoding.maskCls", false)
	viper.SetDefault("encoding.doLowerCase", false)
	viper.SetDefault("train.trainBatchSize", 32)
	viper.SetDefault("train.evalBatchSize", 1)
	viper.SetDefault("train.learningRate", 5e-5)
	viper.SetDefault("train.warmupProportion", 0.1)
	viper.SetDefault("train.gradientAccumulationSteps", 1)
	viper.SetDefault("train.numTrainEpochs", 3)
	viper.SetDefault("train.patience", 3)
	viper.SetDefault("train.threshold", 0.005)
	viper.SetDefault("train.seed", 42)
	viper.SetDefault("extract.batchSize", 32)
	viper.SetDefault("extract.layers", "-1")
	viper.SetDefault("extract.storeDsn", internal.DefaultStoreDSN)
	viper.SetDefault("extract.workers", 4)
	viper.SetDefault("model.provider", "hash")
	viper.SetDefault("model.hiddenSize", 768)
	viper.SetDefault("model.numLayers", 12)
	viper.SetDefault("task.outputDir", internal.DefaultOutputDir)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // task.dataDir becomes TASK_DATADIR

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if AppConfig.Train.GradientAccumulationSteps < 1 {
		return nil, fmt.Errorf("invalid gradientAccumulationSteps: %d, should be >= 1",
			AppConfig.Train.GradientAccumulationSteps)
	}

	return &AppConfig, nil
}

// ParseLayers parses the comma-separated layer list, resolving negative
// indices against numLayers (so -1 is the top layer).
func ParseLayers(spec string, numLayers int) ([]int, error) {
	parts := strings.Split(spec, ",")
	layers := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(p, "%d", &idx); err != nil {
			return nil, fmt.Errorf("invalid layer index %q: %w", p, err)
		}
		if idx < 0 {
			idx += numLayers
		}
		if idx < 0 || idx >= numLayers {
			return nil, fmt.Errorf("layer index %s out of range for %d layers", p, numLayers)
		}
		layers = append(layers, idx)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layer indices in %q", spec)
	}
	return layers, nil
}
