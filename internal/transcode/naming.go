package transcode

import (
	"path/filepath"
	"strings"
	"time"
)

const outputTimestampLayout = "20060102150405"

// OutputName derives the converted filename for inputPath: the original stem,
// an underscore, a 14-digit timestamp, and the target extension. The
// timestamp is taken at transcode start, not at detection.
func OutputName(inputPath, targetExt string, ts time.Time) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	targetExt = strings.TrimSpace(targetExt)
	if targetExt != "" && !strings.HasPrefix(targetExt, ".") {
		targetExt = "." + targetExt
	}
	return stem + "_" + ts.Format(outputTimestampLayout) + targetExt
}
