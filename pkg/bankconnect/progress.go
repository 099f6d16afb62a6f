package bankconnect

import "github.com/FACorreiaa/bankconnect-go/pkg/model"

// Verdict is the reduction of a progress envelope to one polling decision.
type Verdict int

const (
	VerdictCompleted Verdict = iota
	VerdictProcessing
	VerdictFailed
	// VerdictNotFound means the service sent no progress at all.
	VerdictNotFound
)

func (v Verdict) String() string {
	switch v {
	case VerdictProcessing:
		return "processing"
	case VerdictFailed:
		return "failed"
	case VerdictNotFound:
		return "not_found"
	default:
		return "completed"
	}
}

// Classify scans statement states in order. The first failed or processing
// statement decides the verdict, so a processing entry ahead of a failed one
// yields VerdictProcessing. An empty list is completed; a nil list is not found.
func Classify(progress []model.StatementProgress) Verdict {
	if progress == nil {
		return VerdictNotFound
	}
	for _, statement := range progress {
		switch statement.Status {
		case model.StatusFailed:
			return VerdictFailed
		case model.StatusProcessing:
			return VerdictProcessing
		}
	}
	return VerdictCompleted
}
