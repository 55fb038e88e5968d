package subprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch/internal/domain"
	"github.com/kailas-cloud/objsearch/internal/domain/detection"
)

// maxDiagnostic caps the stderr tail kept as a failure diagnostic.
const maxDiagnostic = 4096

// Detector runs an external detection program once per batch.
//
// The program is invoked as `command args... <request>` where request is a JSON object
// {"files": [...], "modelPath": "..."}. It must print a JSON array of per-image records
// {"image_path", "detections": [{"class", "confidence", "bbox"}]} in input order.
type Detector struct {
	command string
	args    []string
	logger  *zap.Logger
}

// Config holds the detector program settings.
type Config struct {
	Command string
	Args    []string
	Logger  *zap.Logger
}

// NewDetector creates a subprocess detector.
func NewDetector(cfg *Config) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	args := make([]string, len(cfg.Args))
	copy(args, cfg.Args)
	return &Detector{command: cfg.Command, args: args, logger: logger}
}

// Detect runs the program over images. Cancelling ctx kills the process.
func (d *Detector) Detect(ctx context.Context, images []string, weights string) ([][]detection.Detection, error) {
	payload, err := json.Marshal(requestDTO{Files: images, ModelPath: weights})
	if err != nil {
		return nil, fmt.Errorf("encode detector request: %w", err)
	}

	args := append(append([]string{}, d.args...), string(payload))
	cmd := exec.CommandContext(ctx, d.command, args...)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	d.logger.Debug("Detector exited",
		zap.String("command", d.command),
		zap.Int("images", len(images)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(runErr),
	)

	if runErr != nil {
		diag := diagnostic(stderr.Bytes())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.NewDetectionFailed(ctxErr, diag)
		}
		return nil, domain.NewDetectionFailed(runErr, diag)
	}

	return decodeOutput(stdout.Bytes(), images)
}

// HealthCheck verifies that the detector program can be resolved.
func (d *Detector) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(d.command); err != nil {
		return fmt.Errorf("detector command %q: %w", d.command, err)
	}
	return nil
}

func diagnostic(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > maxDiagnostic {
		s = s[len(s)-maxDiagnostic:]
	}
	return s
}
