package openid

// Status classifies the outcome of completing a handshake.
type Status int

const (
	// StatusFailure covers everything that must not authorize a user:
	// verification errors, tampered parameters, replayed nonces, store
	// failures. It is the zero value so forgetting to classify fails closed.
	StatusFailure Status = iota
	// StatusSuccess means the provider's response verified cryptographically.
	StatusSuccess
	// StatusCancel means the user declined at the provider.
	StatusCancel
	// StatusSetupNeeded means the provider requires user interaction before
	// it can answer an immediate-mode request.
	StatusSetupNeeded
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancel:
		return "cancel"
	case StatusSetupNeeded:
		return "setup_needed"
	default:
		return "failure"
	}
}

// Result is the verification outcome of a provider callback. Identity is set
// only on StatusSuccess and holds the verified identity URL, which may differ
// from the identifier the user originally typed.
type Result struct {
	Status   Status
	Identity string
	Reason   string
}

func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

func failure(reason string) Result {
	return Result{Status: StatusFailure, Reason: reason}
}
