package output

// ScanOutput is the JSON/YAML output of the scan and watch commands.
type ScanOutput struct {
	RunID    string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Location string        `json:"location" yaml:"location"`
	Database string        `json:"database,omitempty" yaml:"database,omitempty"`
	DryRun   bool          `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Summary  ScanSummary   `json:"summary" yaml:"summary"`
	Files    []ScanFile    `json:"files" yaml:"files"`
	Failures []ScanFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ScanSummary holds the totals of a scan.
type ScanSummary struct {
	Files       int   `json:"files" yaml:"files"`
	FilesFailed int   `json:"files_failed" yaml:"files_failed"`
	Statements  int   `json:"statements" yaml:"statements"`
	Skipped     int   `json:"skipped" yaml:"skipped"`
	Units       int   `json:"units" yaml:"units"`
	Errors      int   `json:"errors" yaml:"errors"`
	Interrupted bool  `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	DurationMS  int64 `json:"duration_ms" yaml:"duration_ms"`
}

// ScanFile is one recorded file.
type ScanFile struct {
	Path       string `json:"path" yaml:"path"`
	FileID     int64  `json:"file_id" yaml:"file_id"`
	Statements int    `json:"statements" yaml:"statements"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Units      int    `json:"units" yaml:"units"`
	Errors     int    `json:"errors" yaml:"errors"`
}

// ScanFailure is a file or statement that could not be recorded.
type ScanFailure struct {
	Path    string `json:"path" yaml:"path"`
	Type    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
}

// WatchEvent reports one file recorded by the watch command.
type WatchEvent struct {
	Path       string `json:"path" yaml:"path"`
	FileID     int64  `json:"file_id,omitempty" yaml:"file_id,omitempty"`
	Statements int    `json:"statements" yaml:"statements"`
	Units      int    `json:"units" yaml:"units"`
	Errors     int    `json:"errors" yaml:"errors"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}
