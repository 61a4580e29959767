// Package export writes an editing session out as a CMX3600 EDL so a cut
// assembled here can be finished in a desktop NLE.
package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelcut/reelcut-agent/internal/timeline"
)

// GenerateEDL renders timeline clips as CMX3600 events. Source in and out
// come from each clip's trimmed range; record times accumulate across the
// cut.
func GenerateEDL(clips []timeline.Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var recordOffset time.Duration
	for i, clip := range clips {
		srcIn := timecode(clip.TrimmedRange.Start, fps)
		srcOut := timecode(clip.TrimmedRange.End(), fps)
		recIn := timecode(recordOffset, fps)
		recOut := timecode(recordOffset+clip.Duration(), fps)

		name := clipName(clip)
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", name),
		)
		if clip.Asset != nil {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", clip.Asset.Path))
		}

		recordOffset += clip.Duration()
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func clipName(clip timeline.Clip) string {
	if clip.Asset == nil {
		return clip.ID
	}
	base := filepath.Base(clip.Asset.Path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if sanitized := SanitizeName(name, 64); sanitized != "" {
		return sanitized
	}
	return clip.ID
}

func timecode(d time.Duration, fps int) string {
	totalFrames := int(math.Round(d.Seconds() * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
