package indicator

import "errors"

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// Bind implements Indicator.Bind.
func (m *Multi) Bind(channel int) error {
	return m.each(func(ind Indicator) error { return ind.Bind(channel) })
}

// Granted implements Indicator.Granted.
func (m *Multi) Granted() error {
	return m.each(Indicator.Granted)
}

// Idle implements Indicator.Idle.
func (m *Multi) Idle() error {
	return m.each(Indicator.Idle)
}

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() error {
	return m.each(Indicator.Shutdown)
}

// Release implements Indicator.Release.
func (m *Multi) Release() error {
	return m.each(Indicator.Release)
}

// each applies fn to every indicator, continuing past failures.
func (m *Multi) each(fn func(Indicator) error) error {
	var errs []error
	for _, ind := range m.indicators {
		if err := fn(ind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
