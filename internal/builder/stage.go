package builder

// Stage is a state of the build pipeline. A build moves through the stages
// in declaration order and stops at Done or Failed.
type Stage int

const (
	Pending Stage = iota
	ConfigParsed
	ToolchainResolved
	LayoutCreated
	DependenciesFetched
	HeadersProjected
	DependenciesCompiled
	ProjectCompiled
	Linked
	Done
	Failed
)

var stageNames = [...]string{
	Pending:              "pending",
	ConfigParsed:         "config parsed",
	ToolchainResolved:    "toolchain resolved",
	LayoutCreated:        "layout created",
	DependenciesFetched:  "dependencies fetched",
	HeadersProjected:     "headers projected",
	DependenciesCompiled: "dependencies compiled",
	ProjectCompiled:      "project compiled",
	Linked:               "linked",
	Done:                 "done",
	Failed:               "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// action describes the work that leads into s
func (s Stage) action() string {
	switch s {
	case ConfigParsed:
		return "failed to parse configuration"
	case ToolchainResolved:
		return "failed to resolve toolchain"
	case LayoutCreated:
		return "failed to create build directories"
	case DependenciesFetched:
		return "failed to fetch dependencies"
	case HeadersProjected:
		return "failed to copy dependency headers"
	case DependenciesCompiled:
		return "failed to build dependencies"
	case ProjectCompiled:
		return "failed to build project"
	case Linked:
		return "failed to link"
	}
	return "build failed"
}

// StageError is returned by Builder.Build. Stage is the stage that could not
// be reached.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.action() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
