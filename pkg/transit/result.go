package transit

// ErrorKind classifies why a strategy could not produce usable times.
type ErrorKind string

const (
	// ErrorKindNone means the result carries usable times.
	ErrorKindNone ErrorKind = ""
	// ErrorKindNoConnectivity covers DNS/host/socket level failures.
	ErrorKindNoConnectivity ErrorKind = "NoConnectivity"
	// ErrorKindUpstreamServer covers HTTP 5xx from a live source.
	ErrorKindUpstreamServer ErrorKind = "UpstreamServerError"
	// ErrorKindUpstreamLogic covers a 200 response whose payload signals a
	// domain error (no data for this date, descent-only stop).
	ErrorKindUpstreamLogic ErrorKind = "UpstreamLogicError"
	// ErrorKindParse covers malformed or unexpected payload shapes.
	ErrorKindParse ErrorKind = "ParseError"
	// ErrorKindSourceUnavailable means the offline schedule store is not
	// installed or its storage is not mounted. Not transient.
	ErrorKindSourceUnavailable ErrorKind = "SourceUnavailable"
)

// Result is the normalised arrival record shared by every source.
//
// Times holds formatted HHhMM strings in arrival order. When ErrorKind is
// set Times is always empty and ErrorMessage is what the caller should show
// instead of a list.
type Result struct {
	SourceName string `json:"sourceName"`

	Times        []string `json:"times"`
	PreviousTime string   `json:"previousTime,omitempty"`

	Message  string `json:"message,omitempty"`
	Message2 string `json:"message2,omitempty"`

	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// NewResult builds a successful result for the given source.
func NewResult(sourceName string, times ...string) *Result {
	return &Result{
		SourceName: sourceName,
		Times:      times,
	}
}

// NewErrorResult builds an error-tagged result. Times stays empty.
func NewErrorResult(sourceName string, kind ErrorKind, message string) *Result {
	return &Result{
		SourceName:   sourceName,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}

func (r *Result) Failed() bool {
	return r.ErrorKind != ErrorKindNone
}
