package supervisor

// ProcessState 是子进程的生命周期状态。Exited*/KilledByRequest 为终态。
type ProcessState int

const (
	NotStarted ProcessState = iota
	Running
	ExitedCleanly
	ExitedWithError
	KilledByRequest
)

func (s ProcessState) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case ExitedCleanly:
		return "exited cleanly"
	case ExitedWithError:
		return "exited with error"
	case KilledByRequest:
		return "killed by request"
	default:
		return "unknown"
	}
}

// Terminal 报告是否为终态。
func (s ProcessState) Terminal() bool {
	return s == ExitedCleanly || s == ExitedWithError || s == KilledByRequest
}
