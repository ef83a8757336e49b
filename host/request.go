package host

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Request identifies a telephony request submitted by the host.
type Request int

const (
	RequestUnknown Request = iota

	RadioPower
	GetSIMStatus
	ScreenState

	RegistrationState
	DataRegistrationState
	Operator
	QueryAvailableNetworks
	QueryNetworkSelectionMode
	SetNetworkSelectionAutomatic
	SetNetworkSelectionManual
	GetPreferredNetworkType
	SetPreferredNetworkType
	SignalStrength

	GetIMEI
	GetIMSI
	DeviceIdentity
	BasebandVersion

	SetupDataCall
	DeactivateDataCall
	DataCallList
	LastDataCallFailCause

	SendSMS
	SMSAcknowledge
	WriteSMSToSIM
	DeleteSMSOnSIM

	GetCurrentCalls
	Dial
	Hangup
	HangupWaitingOrBackground
	HangupForegroundResumeBackground
	SwitchWaitingOrHoldingAndActive
	Conference
	Answer
	UDUB
	SeparateConnection
	DTMF

	SIMIO
	EnterSIMPIN
	EnterSIMPUK
	EnterSIMPIN2
	EnterSIMPUK2
	ChangeSIMPIN
	ChangeSIMPIN2

	SendUSSD
	CancelUSSD

	OEMHookRaw
	OEMHookStrings
)

var requestNames = map[Request]string{
	RadioPower:                       "radio_power",
	GetSIMStatus:                     "get_sim_status",
	ScreenState:                      "screen_state",
	RegistrationState:                "registration_state",
	DataRegistrationState:            "data_registration_state",
	Operator:                         "operator",
	QueryAvailableNetworks:           "query_available_networks",
	QueryNetworkSelectionMode:        "query_network_selection_mode",
	SetNetworkSelectionAutomatic:     "set_network_selection_automatic",
	SetNetworkSelectionManual:        "set_network_selection_manual",
	GetPreferredNetworkType:          "get_preferred_network_type",
	SetPreferredNetworkType:          "set_preferred_network_type",
	SignalStrength:                   "signal_strength",
	GetIMEI:                          "get_imei",
	GetIMSI:                          "get_imsi",
	DeviceIdentity:                   "device_identity",
	BasebandVersion:                  "baseband_version",
	SetupDataCall:                    "setup_data_call",
	DeactivateDataCall:               "deactivate_data_call",
	DataCallList:                     "data_call_list",
	LastDataCallFailCause:            "last_data_call_fail_cause",
	SendSMS:                          "send_sms",
	SMSAcknowledge:                   "sms_acknowledge",
	WriteSMSToSIM:                    "write_sms_to_sim",
	DeleteSMSOnSIM:                   "delete_sms_on_sim",
	GetCurrentCalls:                  "get_current_calls",
	Dial:                             "dial",
	Hangup:                           "hangup",
	HangupWaitingOrBackground:        "hangup_waiting_or_background",
	HangupForegroundResumeBackground: "hangup_foreground_resume_background",
	SwitchWaitingOrHoldingAndActive:  "switch_waiting_or_holding_and_active",
	Conference:                       "conference",
	Answer:                           "answer",
	UDUB:                             "udub",
	SeparateConnection:               "separate_connection",
	DTMF:                             "dtmf",
	SIMIO:                            "sim_io",
	EnterSIMPIN:                      "enter_sim_pin",
	EnterSIMPUK:                      "enter_sim_puk",
	EnterSIMPIN2:                     "enter_sim_pin2",
	EnterSIMPUK2:                     "enter_sim_puk2",
	ChangeSIMPIN:                     "change_sim_pin",
	ChangeSIMPIN2:                    "change_sim_pin2",
	SendUSSD:                         "send_ussd",
	CancelUSSD:                       "cancel_ussd",
	OEMHookRaw:                       "oem_hook_raw",
	OEMHookStrings:                   "oem_hook_strings",
}

var requestsByName = func() map[string]Request {
	m := make(map[string]Request, len(requestNames))
	for r, name := range requestNames {
		m[name] = r
	}
	return m
}()

func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return "request_" + strconv.Itoa(int(r))
}

// ParseRequest looks up a request by its snake_case name. Unknown names map
// to RequestUnknown, which the dispatcher answers like any other
// unrecognized request.
func ParseRequest(name string) Request {
	return requestsByName[strings.ToLower(name)]
}

// Status is the completion code of a request.
type Status int

const (
	Success Status = iota
	GenericFailure
	RadioNotAvailable
	PasswordIncorrect
	RequestNotSupported
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case GenericFailure:
		return "generic_failure"
	case RadioNotAvailable:
		return "radio_not_available"
	case PasswordIncorrect:
		return "password_incorrect"
	case RequestNotSupported:
		return "request_not_supported"
	default:
		return "status_" + strconv.Itoa(int(s))
	}
}

// MarshalText renders the status by name in JSON views.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Token correlates a request with its completion.
type Token string

// NewToken returns a fresh random correlation token.
func NewToken() Token {
	return Token(uuid.NewString())
}

// Payload is the request input: an ordered list of string arguments.
type Payload []string

// String returns the i-th argument, or "" when it is absent.
func (p Payload) String(i int) string {
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

// Has reports whether the i-th argument is present.
func (p Payload) Has(i int) bool {
	return i >= 0 && i < len(p)
}

// Int parses the i-th argument as a decimal integer.
func (p Payload) Int(i int) (int, error) {
	if !p.Has(i) {
		return 0, fmt.Errorf("argument %d missing", i)
	}
	n, err := strconv.Atoi(strings.TrimSpace(p[i]))
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return n, nil
}
