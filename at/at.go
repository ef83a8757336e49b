package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1a"
	Esc    = "\x1b"

	// Final result codes
	OK         = "OK"
	Connect    = "CONNECT"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Unsolicited lines that carry a PDU on the following line
	UrcNewSMS       = "+CMT:"
	UrcStatusReport = "+CDS:"
	UrcBroadcast    = "+CBM:"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR, +CME ERROR
	TypeURC                        // Always unsolicited, followed by a PDU line
	TypeData                       // Intermediate output or unsolicited text
	TypePrompt                     // SMS input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
