package sealevel

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Logger receives the messages a program emits during execution, the
// equivalent of the runtime's program log.
type Logger interface {
	Log(msg string)
}

type LogRecorder struct {
	Logs []string
}

func (recorder *LogRecorder) Log(msg string) {
	recorder.Logs = append(recorder.Logs, msg)
}

func (execCtx *ExecutionCtx) ProgramLog(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if execCtx.Log != nil {
		execCtx.Log.Log(msg)
	}
	klog.V(2).Infof("program log: %s", msg)
}
