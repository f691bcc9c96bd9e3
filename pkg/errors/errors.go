package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition is a business error code with its default message.
type Definition struct {
	Code    string
	Message string
}

// Scan pipeline errors.
var (
	CodeMalformed   = Definition{Code: "CODE_MALFORMED", Message: "Scanned code carries no numeric identifier"}
	StudentNotFound = Definition{Code: "STUDENT_NOT_FOUND", Message: "Student not found"}
	ScanTooSoon     = Definition{Code: "SCAN_TOO_SOON", Message: "Scan ignored, cooldown active"}
)

// Persistence errors.
var (
	EventWriteFailed  = Definition{Code: "EVENT_WRITE_FAILED", Message: "Event store write failed"}
	MirrorUnavailable = Definition{Code: "MIRROR_UNAVAILABLE", Message: "Mirror sink unavailable, record buffered"}
	CacheCorrupt      = Definition{Code: "CACHE_CORRUPT", Message: "Cooldown cache entry unreadable"}
)

// Notification errors.
var (
	MailDisabled   = Definition{Code: "MAIL_DISABLED", Message: "SMTP not configured"}
	NoRecipients   = Definition{Code: "NO_RECIPIENTS", Message: "Student record has no guardian emails"}
	QueueSaturated = Definition{Code: "QUEUE_SATURATED", Message: "Notification queue full, job dropped"}
)

// Scanner errors.
var (
	ScannerOffline = Definition{Code: "SCANNER_OFFLINE", Message: "Serial scanner unreachable"}
)

// Lookup maps codes back to their definitions.
var Lookup = map[string]Definition{
	CodeMalformed.Code:     CodeMalformed,
	StudentNotFound.Code:   StudentNotFound,
	ScanTooSoon.Code:       ScanTooSoon,
	EventWriteFailed.Code:  EventWriteFailed,
	MirrorUnavailable.Code: MirrorUnavailable,
	CacheCorrupt.Code:      CacheCorrupt,
	MailDisabled.Code:      MailDisabled,
	NoRecipients.Code:      NoRecipients,
	QueueSaturated.Code:    QueueSaturated,
	ScannerOffline.Code:    ScannerOffline,
}

// Get returns the Definition for code, or a generic one when unknown.
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
