package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/reelcut/reelcut-agent/internal/timeline"
)

type Request struct {
	ProjectName string  `json:"project_name"`
	FrameRate   float64 `json:"frame_rate"`
	OutputDir   string  `json:"output_dir"`
}

type Response struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export writes the session's clips to <output_dir>/<project>.edl.
func (e *Exporter) Export(clips []timeline.Clip, req Request) (*Response, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("nothing to export: timeline is empty")
	}
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}

	name := SanitizeName(req.ProjectName, 64)
	if name == "" {
		name = "untitled"
	}
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	content := GenerateEDL(clips, name, frameRate)
	outputPath := filepath.Join(req.OutputDir, name+".edl")

	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write EDL: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("exported EDL", "path", outputPath, "clips", len(clips))
	}

	return &Response{
		Status:     "ok",
		OutputPath: outputPath,
		ClipCount:  len(clips),
	}, nil
}
