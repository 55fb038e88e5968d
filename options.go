package objsearch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	processedDir string
	baseDir      string

	detector       Detector
	command        string
	args           []string
	timeout        time.Duration
	defaultWeights string
	extensions     []string

	style Style

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithProcessedDir sets the directory holding one subdirectory per batch.
// Default: data/processed.
func WithProcessedDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.processedDir = dir
	})
}

// WithBaseDir sets the directory that relative metadata and image paths resolve against.
func WithBaseDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseDir = dir
	})
}

// WithDetector sets an in-process detector. It takes precedence over WithDetectorCommand.
func WithDetector(d Detector) Option {
	return optionFunc(func(c *clientConfig) {
		c.detector = d
	})
}

// WithDetectorCommand runs detection as an external program:
// `command args... {"files": [...], "modelPath": "..."}`.
func WithDetectorCommand(command string, args ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.command = command
		c.args = args
	})
}

// WithDetectorTimeout bounds a single detector run. Default: 10 minutes.
func WithDetectorTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithDefaultWeights sets the weights reference used when a call passes none.
// Default: yolo11m.pt.
func WithDefaultWeights(weights string) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultWeights = weights
	})
}

// WithExtensions sets the image extensions picked up by ProcessDir.
// Default: .jpg, .jpeg, .png (case-insensitive).
func WithExtensions(exts ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.extensions = exts
	})
}

// WithStyle sets the overlay colors and stroke width used by Render.
// Empty fields keep their defaults.
func WithStyle(s Style) Option {
	return optionFunc(func(c *clientConfig) {
		c.style = s
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers processing and operation metrics
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
