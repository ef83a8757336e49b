package ril

import (
	"context"
	"fmt"

	"i4.energy/across/fwril/netinfo"
	"i4.energy/across/fwril/session"
)

// AvailableNetwork is one entry of the available networks answer.
type AvailableNetwork struct {
	netinfo.Operator
	Status string `json:"status"`
}

// Preferred network types understood by the host.
const (
	NetworkHybrid     = 4
	NetworkCDMANoEVDO = 5
	NetworkEVDONoCDMA = 6
)

// prefModes maps host network types to ^PREFMODE values.
var prefModes = map[int]int{
	NetworkCDMANoEVDO: 2,
	NetworkEVDONoCDMA: 4,
	NetworkHybrid:     8,
}

// operator resolves the carrier, records its short name and rewrites the
// status file.
func (d *Dispatcher) operator(ctx context.Context) netinfo.Operator {
	op := d.resolver.Resolve(ctx)
	d.session.SetCarrier(op.Short)
	d.persist()
	return op
}

// selectionMode queries +COPS to confirm the channel works but reports the
// cached mode: this modem always answers manual.
func (d *Dispatcher) selectionMode(ctx context.Context) (int, error) {
	line, err := d.line(ctx, "AT+COPS?", "+COPS:")
	if err != nil {
		return 0, err
	}
	if _, err := line.NextInt(); err != nil {
		return 0, err
	}
	return int(d.session.SelectionMode()), nil
}

func (d *Dispatcher) setSelectionMode(ctx context.Context, mode session.SelectionMode) {
	if _, err := d.cmd.Command(ctx, fmt.Sprintf("AT+COPS=%d", mode)); err != nil {
		d.logger.Debug("Network selection command failed", "mode", mode, "error", err)
	}
	d.session.SetSelectionMode(mode)
}

func (d *Dispatcher) preferredNetworkType(ctx context.Context) (int, error) {
	line, err := d.line(ctx, "AT^PREFMODE?", "^PREFMODE:")
	if err != nil {
		return 0, err
	}
	mode, err := line.NextInt()
	if err != nil {
		return 0, err
	}
	for networkType, m := range prefModes {
		if m == mode {
			return networkType, nil
		}
	}
	return 0, fmt.Errorf("unmapped preferred mode %d", mode)
}

func (d *Dispatcher) setPreferredNetworkType(ctx context.Context, networkType int) error {
	mode, ok := prefModes[networkType]
	if !ok {
		return fmt.Errorf("%w: network type %d", ErrInvalidArgument, networkType)
	}
	_, err := d.cmd.Command(ctx, fmt.Sprintf("AT^PREFMODE=%d", mode))
	return err
}
