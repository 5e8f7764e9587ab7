package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	viper.Reset()

	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	tempDir, err := os.MkdirTemp("", "bertft-config-test-*")
	require.NoError(suite.T(), err)
	suite.tempDir = tempDir

	err = os.Chdir(tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), 128, cfg.Encoding.MaxSeqLength)
	assert.Equal(suite.T(), "lenient", cfg.Encoding.Truncation)
	assert.Equal(suite.T(), 32, cfg.Train.TrainBatchSize)
	assert.Equal(suite.T(), 5e-5, cfg.Train.LearningRate)
	assert.Equal(suite.T(), 0.1, cfg.Train.WarmupProportion)
	assert.Equal(suite.T(), 1, cfg.Train.GradientAccumulationSteps)
	assert.Equal(suite.T(), 3, cfg.Train.Patience)
	assert.Equal(suite.T(), "-1", cfg.Extract.Layers)
	assert.Equal(suite.T(), "hash", cfg.Model.Provider)
	assert.Equal(suite.T(), 768, cfg.Model.HiddenSize)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
task:
  name: "sts-b"
  dataDir: "./data/STS-B"
  outputDir: "./out"

encoding:
  maxSeqLength: 64
  truncation: "strict"
  maskCls: true

train:
  trainBatchSize: 16
  gradientAccumulationSteps: 4
  numTrainEpochs: 10
  patience: 2
  threshold: 0.01

extract:
  layers: "-1,-2,-3,-4"
  inputFile: "./input.txt"

model:
  provider: "onnx"
  modelPath: "./model.onnx"
  numLayers: 12
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "sts-b", cfg.Task.Name)
	assert.Equal(suite.T(), "./data/STS-B", cfg.Task.DataDir)
	assert.Equal(suite.T(), 64, cfg.Encoding.MaxSeqLength)
	assert.Equal(suite.T(), "strict", cfg.Encoding.Truncation)
	assert.True(suite.T(), cfg.Encoding.MaskCLS)
	assert.Equal(suite.T(), 16, cfg.Train.TrainBatchSize)
	assert.Equal(suite.T(), 4, cfg.Train.GradientAccumulationSteps)
	assert.Equal(suite.T(), 10, cfg.Train.NumTrainEpochs)
	assert.Equal(suite.T(), "-1,-2,-3,-4", cfg.Extract.Layers)
	assert.Equal(suite.T(), "onnx", cfg.Model.Provider)

	// Values absent from the file keep their defaults.
	assert.Equal(suite.T(), 5e-5, cfg.Train.LearningRate)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsBadAccumulation() {
	configContent := `
train:
  gradientAccumulationSteps: 0
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func TestParseLayers(t *testing.T) {
	t.Run("positive indices", func(t *testing.T) {
		layers, err := ParseLayers("0,1,2", 12)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, layers)
	})

	t.Run("negative indices resolve from the end", func(t *testing.T) {
		layers, err := ParseLayers("-1,-2,-3,-4", 12)
		require.NoError(t, err)
		assert.Equal(t, []int{11, 10, 9, 8}, layers)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := ParseLayers("12", 12)
		assert.Error(t, err)
		_, err = ParseLayers("-13", 12)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseLayers("top", 12)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseLayers("", 12)
		assert.Error(t, err)
	})
}
