package ril

import (
	"context"
)

// SignalStrength is the combined GW, CDMA and EVDO signal report. dBm and
// Ec/Io values are positive, in units of -1 dBm and -0.1 dB.
type SignalStrength struct {
	GWSignalStrength int `json:"gw_signal_strength"`
	GWBitErrorRate   int `json:"gw_bit_error_rate"`
	CDMADbm          int `json:"cdma_dbm"`
	CDMAEcio         int `json:"cdma_ecio"`
	EVDODbm          int `json:"evdo_dbm"`
	EVDOEcio         int `json:"evdo_ecio"`
	EVDOSNR          int `json:"evdo_snr"`
}

const (
	cdmaEcio = 90
	evdoEcio = 750
	evdoSNR  = 8
)

// initialSignal is reported until the first reading completes.
var initialSignal = SignalStrength{EVDOEcio: evdoEcio, EVDOSNR: evdoSNR}

// evdoDbm maps the ^HDRCSQ level to dBm.
func evdoDbm(level int) int {
	switch level {
	case 40:
		return 90
	case 60:
		return 75
	case 80, 99:
		return 60
	default:
		return 105
	}
}

// signalStrength never fails. Fields that could not be read keep their
// last known values.
func (d *Dispatcher) signalStrength(ctx context.Context) SignalStrength {
	d.signalMu.Lock()
	defer d.signalMu.Unlock()

	s := d.signal
	if err := d.readSignal(ctx, &s); err != nil {
		d.logger.Warn("Signal strength incomplete, reporting last known values", "error", err)
	}
	d.signal = s
	if d.signalObserver != nil {
		d.signalObserver.Signal(s)
	}
	return s
}

func (d *Dispatcher) readSignal(ctx context.Context, s *SignalStrength) error {
	line, err := d.line(ctx, "AT+CSQ", "+CSQ:")
	if err != nil {
		return err
	}
	rssi, err := line.NextInt()
	if err != nil {
		return err
	}
	s.CDMADbm = 113 - 2*rssi

	line, err = d.line(ctx, "AT^HDRCSQ", "^HDRCSQ:")
	if err != nil {
		return err
	}
	level, err := line.NextInt()
	if err != nil {
		return err
	}
	s.EVDODbm = evdoDbm(level)

	// +NETPAR carries the CDMA Ec/Io in its tenth field. The modem value is
	// not reported; the line is only validated.
	if line, err := d.line(ctx, "AT+NETPAR=0", "+NETPAR:"); err != nil {
		d.logger.Debug("NETPAR unavailable", "error", err)
	} else if err := line.SkipN(9); err != nil {
		d.logger.Debug("NETPAR malformed", "error", err)
	} else if _, err := line.NextInt(); err != nil {
		d.logger.Debug("NETPAR malformed", "error", err)
	}

	s.GWSignalStrength, s.GWBitErrorRate = 0, 0
	s.CDMAEcio = cdmaEcio
	s.EVDOEcio = evdoEcio
	s.EVDOSNR = evdoSNR
	return nil
}
