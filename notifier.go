package authflow

// NotifierFunc adapts two functions to the Notifier interface.
type NotifierFunc struct {
	AlertFn func(message string)
	InfoFn  func(message string)
}

// Alert implements Notifier.
func (n NotifierFunc) Alert(message string) {
	if n.AlertFn != nil {
		n.AlertFn(message)
	}
}

// Info implements Notifier.
func (n NotifierFunc) Info(message string) {
	if n.InfoFn != nil {
		n.InfoFn(message)
	}
}

// loggerNotifier routes notifications to the logger. It is the default for
// headless wiring; interactive presenters supply their own dialog-backed
// implementation.
type loggerNotifier struct {
	logger Logger
}

func (n loggerNotifier) Alert(message string) {
	n.logger.Error("ALERT %s", message)
}

func (n loggerNotifier) Info(message string) {
	n.logger.Info("%s", message)
}

type noopNotifier struct{}

func (noopNotifier) Alert(string) {}
func (noopNotifier) Info(string)  {}

func normalizeNotifier(n Notifier, logger Logger) Notifier {
	if n != nil {
		return n
	}
	if logger == nil {
		return noopNotifier{}
	}
	return loggerNotifier{logger: logger}
}
