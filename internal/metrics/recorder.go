package metrics

// Result labels used by query and finalize counters.
const (
	ResultNew       = "new"
	ResultUnchanged = "unchanged"
	ResultSuccess   = "success"
	ResultFailed    = "failed"
)

// Recorder defines observability hooks for freshness tracking. All methods must be
// safe to call on the zero value of an implementation.
type Recorder interface {
	ObserveQuery(namespace, mode string, isNew bool)
	ObserveFinalize(namespace, mode string, success bool)
	SetChangedFiles(namespace string, n int)
	SetBaseline(namespace string, unixSeconds float64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveQuery(string, string, bool)    {}
func (NoopRecorder) ObserveFinalize(string, string, bool) {}
func (NoopRecorder) SetChangedFiles(string, int)          {}
func (NoopRecorder) SetBaseline(string, float64)          {}

func queryResult(isNew bool) string {
	if isNew {
		return ResultNew
	}
	return ResultUnchanged
}

func outcome(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailed
}
