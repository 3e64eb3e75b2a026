package mlx9064x

// Logger receives diagnostic messages from the driver. It is satisfied by
// *logging.Logger from github.com/op/go-logging.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

// Opts holds various configuration options for the camera
type Opts struct {
	// Emissivity of the observed surface. Zero uses the value stored in the
	// EEPROM, or DefaultEmissivity when the camera stores none.
	Emissivity float32
	// Logger is optional.
	Logger Logger
}

func DefaultOptions() *Opts {
	return &Opts{}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{})   {}
func (nopLogger) Infof(string, ...interface{})    {}
func (nopLogger) Warningf(string, ...interface{}) {}
