package ril

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/fwril/at"
)

// SMSResult is the answer to a send request.
type SMSResult struct {
	MessageRef int    `json:"message_ref"`
	AckPDU     string `json:"ack_pdu,omitempty"`
	ErrorCode  int    `json:"error_code"`
}

const defaultSMSC = "00"

// sendSMS sends a PDU in a ^HCMGS exchange. An empty smsc selects the
// default service centre.
func (d *Dispatcher) sendSMS(ctx context.Context, smsc, pdu string) (SMSResult, error) {
	if pdu == "" {
		return SMSResult{}, fmt.Errorf("%w: empty PDU", ErrInvalidArgument)
	}
	if smsc == "" {
		smsc = defaultSMSC
	}
	// the terminator is added by the channel
	pdu = strings.TrimSuffix(pdu, "\x1a")

	if _, err := d.cmd.Command(ctx, "AT+CMGF=1"); err != nil {
		d.logger.Debug("Text mode selection failed", "error", err)
	}
	resp, err := d.cmd.SMS(ctx, "AT^HCMGS="+smsc, pdu, "^HCMGS:")
	if err != nil {
		return SMSResult{}, err
	}

	var result SMSResult
	line := at.NewLine(resp.Line())
	if line.Start() == nil {
		if ref, err := line.NextInt(); err == nil {
			result.MessageRef = ref
		}
	}
	return result, nil
}

func (d *Dispatcher) acknowledgeSMS(ctx context.Context, success int) error {
	var cmd string
	switch success {
	case 1:
		cmd = "AT+CNMA=1"
	case 0:
		cmd = "AT+CNMA=2"
	default:
		return fmt.Errorf("%w: acknowledgement %d", ErrInvalidArgument, success)
	}
	_, err := d.cmd.Command(ctx, cmd)
	return err
}

// writeSMS stores a PDU and returns its storage index.
func (d *Dispatcher) writeSMS(ctx context.Context, status int, pdu string) (int, error) {
	if pdu == "" {
		return 0, fmt.Errorf("%w: empty PDU", ErrInvalidArgument)
	}
	resp, err := d.cmd.SMS(ctx, fmt.Sprintf("AT+CMGW=%d,%d", len(pdu)/2, status), pdu, "+CMGW:")
	if err != nil {
		return 0, err
	}
	line := at.NewLine(resp.Line())
	if err := line.Start(); err != nil {
		return 0, err
	}
	return line.NextInt()
}

func (d *Dispatcher) deleteSMS(ctx context.Context, index int) error {
	_, err := d.cmd.Command(ctx, fmt.Sprintf("AT+CMGD=%d", index))
	return err
}
