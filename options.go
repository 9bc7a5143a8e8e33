package cmt

// DeviceOption configures OpenDefaultDevice.
//
// Example:
//
//	// First available driver, in priority order
//	dev, err := cmt.OpenDefaultDevice()
//
//	// Force the CPU reference driver and panic on API misuse
//	dev, err := cmt.OpenDefaultDevice(
//	    cmt.WithDriver("software"),
//	    cmt.WithValidation(cmt.ValidationFailFast),
//	)
type DeviceOption func(*deviceOptions)

type deviceOptions struct {
	driver        string
	label         string
	validation    ValidationMode
	setValidation bool
}

func defaultDeviceOptions() deviceOptions {
	return deviceOptions{}
}

// WithDriver opens the named driver instead of trying every registered
// driver in priority order.
func WithDriver(name string) DeviceOption {
	return func(o *deviceOptions) {
		o.driver = name
	}
}

// WithValidation sets the process-wide validation mode when the device
// opens. See SetValidationMode.
func WithValidation(m ValidationMode) DeviceOption {
	return func(o *deviceOptions) {
		o.validation = m
		o.setValidation = true
	}
}

// WithLabel attaches a debug label to the device.
func WithLabel(label string) DeviceOption {
	return func(o *deviceOptions) {
		o.label = label
	}
}
