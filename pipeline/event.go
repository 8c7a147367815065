package pipeline

// Stage names a step of the pipeline.
type Stage string

const (
	StageFetchingHTML      Stage = "fetching_html"
	StageExtractingURLs    Stage = "extracting_urls"
	StageFilteringDomains  Stage = "filtering_domains"
	StageTrimmingEdges     Stage = "trimming_edges"
	StageDownloadingImages Stage = "downloading_images"
	StageGeneratingPDF     Stage = "generating_pdf"
	StageCompleted         Stage = "completed"
	StageError             Stage = "error"
)

// Progress checkpoints. Downloads interpolate between
// progressDownloadStart and progressDownloadEnd.
const (
	progressFetching      = 0
	progressExtracting    = 10
	progressFiltering     = 20
	progressTrimming      = 25
	progressDownloadStart = 30
	progressDownloadEnd   = 80
	progressRendered      = 95
	progressCompleted     = 100
)

// Event is one progress report. Only the fields relevant to Stage are set.
type Event struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`

	TotalFound        int `json:"total_found,omitempty"`
	AfterDomainFilter int `json:"after_domain_filter,omitempty"`
	AfterTrim         int `json:"after_trim,omitempty"`

	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
	Kept    int `json:"kept,omitempty"`

	ImageCount int    `json:"image_count,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
	Filename   string `json:"filename,omitempty"`
	PDFBase64  string `json:"pdf_base64,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func downloadProgress(done, total int) int {
	if total <= 0 {
		return progressDownloadEnd
	}
	return progressDownloadStart + (progressDownloadEnd-progressDownloadStart)*done/total
}

// errorEvent reports err at the progress reached when the run stopped.
func errorEvent(err *Error, progress int) Event {
	return Event{
		Stage:     StageError,
		Progress:  progress,
		Message:   err.Message,
		ErrorKind: err.Kind,
		Error:     err.Message,
	}
}
