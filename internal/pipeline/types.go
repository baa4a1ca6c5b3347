package pipeline

// Result is the immutable outcome of one conversion task. Created once by
// the transformer, consumed exactly once by the collector.
type Result struct {
	Source string
	Dest   string

	Resized        bool
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int

	InputBytes  int64
	OutputBytes int64

	// MetadataDegraded is set when metadata could not be fully preserved or
	// its dimension tags could not be rewritten. Never fails the task.
	MetadataDegraded bool

	// Err marks the task as failed. Size and dimension fields are
	// best-effort when set.
	Err error
}

// ProgressUpdate is a delta event for the live progress display.
type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	ResizedDelta   int
	ErrorDelta     int
	BytesInDelta   int64
	BytesOutDelta  int64
}
