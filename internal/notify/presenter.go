package notify

import "github.com/yanun0323/logs"

// LogPresenter renders toasts to the log.
func LogPresenter(t Toast) {
	switch t.Severity {
	case SeverityError:
		logs.Errorf("[toast:%s] %s: %s", t.Severity, t.Title, t.Description)
	case SeverityWarning:
		logs.Warnf("[toast:%s] %s: %s", t.Severity, t.Title, t.Description)
	default:
		logs.Infof("[toast:%s] %s: %s", t.Severity, t.Title, t.Description)
	}
}
