package worker

import (
	"fmt"
	"log/slog"
	"os"
)

var debugEnabled = os.Getenv("CHATRELAY_WORKER_DEBUG") != ""

func debugLog(format string, args ...any) {
	if !debugEnabled {
		return
	}
	slog.Debug(fmt.Sprintf(format, args...))
}
