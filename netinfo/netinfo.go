// Package netinfo resolves the serving carrier of the modem.
package netinfo

import (
	"context"
	"log/slog"
	"strings"

	"i4.energy/across/fwril/at"
	"i4.energy/across/fwril/modem"
)

// Operator names a mobile network operator.
type Operator struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Numeric string `json:"numeric"`
}

var (
	Verizon = Operator{Long: "Verizon Wireless", Short: "VZW", Numeric: "310004"}
	Sprint  = Operator{Long: "Sprint PCS", Short: "SPCS", Numeric: "310120"}
	Unknown = Operator{Long: "Unknown Operator", Short: "UNK", Numeric: "000000"}
)

// operators is keyed by MCC+MNC.
var operators = map[string]Operator{
	"310000": {Long: "Verizon Wireless", Short: "VZW", Numeric: "310000"},
	"310004": {Long: "Verizon Wireless", Short: "VZW", Numeric: "310004"},
	"310005": {Long: "Verizon Wireless", Short: "VZW", Numeric: "310005"},
	"310012": {Long: "Verizon Wireless", Short: "VZW", Numeric: "310012"},
}

// Lookup finds the operator for an MCC+MNC code. The module reports
// Verizon's 310/00 as "31000", which is read as "310000".
func Lookup(mccmnc string) (Operator, bool) {
	if mccmnc == "31000" {
		mccmnc = "310000"
	}
	op, ok := operators[mccmnc]
	return op, ok
}

// Classify picks the operator named in the free text of the mobile IP
// profile. Text naming neither known carrier yields Unknown.
func Classify(profile string) Operator {
	switch {
	case strings.Contains(profile, "sprint"):
		return Sprint
	case strings.Contains(profile, "vzw"):
		return Verizon
	default:
		return Unknown
	}
}

// Resolver queries the modem for the serving operator.
type Resolver struct {
	cmd    modem.Commander
	logger *slog.Logger
}

func NewResolver(cmd modem.Commander, logger *slog.Logger) *Resolver {
	return &Resolver{cmd: cmd, logger: logger}
}

// Resolve always yields an operator. The MCC/MNC pair reported by the
// module is looked up first; when it is unreadable or not in the table the
// mobile IP profile is probed, and when that fails too the result is
// Unknown.
func (r *Resolver) Resolve(ctx context.Context) Operator {
	mccmnc, err := r.mccmnc(ctx)
	if err != nil {
		r.logger.Debug("MCC/MNC query failed", "error", err)
	} else if op, ok := Lookup(mccmnc); ok {
		return op
	}

	resp, err := r.cmd.SingleLine(ctx, "AT$QCMIPGETP=0", "")
	if err != nil {
		r.logger.Warn("Mobile IP profile query failed", "error", err)
		return Unknown
	}
	op := Classify(resp.Line())
	if op == Unknown {
		r.logger.Info("Unknown operator", "mccmnc", mccmnc, "profile", resp.Line())
	}
	return op
}

// mccmnc parses +VMCCMNC:<n>,<mcc>,<mnc>.
func (r *Resolver) mccmnc(ctx context.Context) (string, error) {
	resp, err := r.cmd.SingleLine(ctx, "AT+VMCCMNC?", "+VMCCMNC:")
	if err != nil {
		return "", err
	}
	line := at.NewLine(resp.Line())
	if err := line.Start(); err != nil {
		return "", err
	}
	if err := line.Skip(); err != nil {
		return "", err
	}
	mcc, err := line.NextString()
	if err != nil {
		return "", err
	}
	mnc, err := line.NextString()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(mcc) + strings.TrimSpace(mnc), nil
}
