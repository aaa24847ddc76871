package sensormux

import (
	"go.bug.st/serial"
)

// NewRealSensorMux creates a SensorMux instance backed by a real serial port
// at the given path using the provided serial options.
func NewRealSensorMux(path string, opts PortOptions) (*SensorMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSensorMux[serial.Port](port), nil
}
