package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath returns the per-session log file for app under logsDir.
func LogFilePath(logsDir, app string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", app, sessionStart.Format("20060102_150405")),
	)
}
