package session

import (
	"rfidexec/indicator"
	"rfidexec/reader"
)

// Hardware creates the channels a session owns.
type Hardware interface {
	// CreateReader creates a detached reader channel.
	CreateReader() (reader.Channel, error)

	// CreateIndicator creates an unbound indicator, or returns nil when
	// no indicator is configured.
	CreateIndicator() (indicator.Indicator, error)
}

// Configured builds channels from reader and indicator configuration.
type Configured struct {
	Reader    reader.Config
	Indicator indicator.Config
}

// CreateReader implements Hardware.CreateReader.
func (c Configured) CreateReader() (reader.Channel, error) {
	return reader.New(c.Reader)
}

// CreateIndicator implements Hardware.CreateIndicator.
func (c Configured) CreateIndicator() (indicator.Indicator, error) {
	if !c.Indicator.Configured() {
		return nil, nil
	}
	return indicator.New(c.Indicator)
}
