package exporter

// ProgressEvent 导出进度事件（SSE 推送）
type ProgressEvent struct {
	Percent int
	Stage   string
}

func reportProgress(progress func(ProgressEvent), percent int, stage string) {
	if progress == nil {
		return
	}
	progress(ProgressEvent{
		Percent: max(0, min(percent, 100)),
		Stage:   stage,
	})
}
