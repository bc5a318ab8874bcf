package serialbridge

import (
	"errors"
	"fmt"

	gobug "go.bug.st/serial"
)

// allow tests to override external dependencies
var (
	openPort = func(name string, mode *gobug.Mode) (SerialPort, error) {
		p, err := gobug.Open(name, mode)
		if err != nil {
			return nil, err
		}
		return &bugstPort{Port: p}, nil
	}
	getPortsList = gobug.GetPortsList
)

// Open opens and configures the serial device described by cfg and bridges
// it. Reads block indefinitely unless cfg.ReadTimeout is set.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	ok, err := isPortAvailable(cfg.PortName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPortName, cfg.PortName)
	}

	mode := &gobug.Mode{
		BaudRate: cfg.BaudRate.Int(),
		DataBits: cfg.DataBits.Int(),
		Parity:   cfg.Parity.Get(),
		StopBits: cfg.StopBits.Get(),
	}

	sp, err := openPort(cfg.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port: %w", err)
	}

	timeout := gobug.NoTimeout
	if cfg.ReadTimeout > 0 {
		timeout = cfg.ReadTimeout
	}
	if err = sp.SetReadTimeout(timeout); err != nil {
		return nil, closeOnError(sp, fmt.Errorf("setting read timeout: %w", err))
	}

	// Explicitly set control lines to configured values
	if err = sp.SetDTR(cfg.DTR); err != nil {
		return nil, closeOnError(sp, fmt.Errorf("setting DTR: %w", err))
	}
	if err = sp.SetRTS(cfg.RTS); err != nil {
		return nil, closeOnError(sp, fmt.Errorf("setting RTS: %w", err))
	}

	p, err := NewPort(sp, cfg.Options)
	if err != nil {
		return nil, closeOnError(sp, err)
	}
	cfg.Logger.Info().Str("port", cfg.PortName).Int("baud", cfg.BaudRate.Int()).Msg("serial port opened")
	return p, nil
}

// closeOnError closes the port and joins any error from closing with the original error
func closeOnError(sp SerialPort, err error) error {
	if e := sp.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

// AvailablePorts lists the serial ports the OS reports.
func AvailablePorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
