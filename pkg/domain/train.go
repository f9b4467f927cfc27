package domain

import "fmt"

type TrainConfiguratorStatus string

const (
	ConfiguratorPending  TrainConfiguratorStatus = "pending"
	ConfiguratorFinished TrainConfiguratorStatus = "finished"
)

func (s TrainConfiguratorStatus) String() string {
	return string(s)
}

func AsTrainConfiguratorStatus(s string) (TrainConfiguratorStatus, error) {
	switch s {
	case string(ConfiguratorPending):
		return ConfiguratorPending, nil
	case string(ConfiguratorFinished):
		return ConfiguratorFinished, nil
	default:
		return "", fmt.Errorf("'%s' is not TrainConfiguratorStatus", s)
	}
}

type TrainBuildStatus string

const (
	// build is requested to the execution service.
	BuildStarting TrainBuildStatus = "starting"

	// execution service has started to build.
	BuildStarted TrainBuildStatus = "started"

	BuildFailed   TrainBuildStatus = "failed"
	BuildFinished TrainBuildStatus = "finished"
)

func (s TrainBuildStatus) String() string {
	return string(s)
}

// build is in progress. The execution pipeline owns the train.
func (s TrainBuildStatus) InProgress() bool {
	switch s {
	case BuildStarting, BuildStarted:
		return true
	default:
		return false
	}
}

func AsTrainBuildStatus(s string) (TrainBuildStatus, error) {
	switch s {
	case string(BuildStarting):
		return BuildStarting, nil
	case string(BuildStarted):
		return BuildStarted, nil
	case string(BuildFailed):
		return BuildFailed, nil
	case string(BuildFinished):
		return BuildFinished, nil
	default:
		return "", fmt.Errorf("'%s' is not TrainBuildStatus", s)
	}
}

type TrainRunStatus string

const (
	RunStarting TrainRunStatus = "starting"
	RunFinished TrainRunStatus = "finished"
	RunFailed   TrainRunStatus = "failed"
)

func (s TrainRunStatus) String() string {
	return string(s)
}

func AsTrainRunStatus(s string) (TrainRunStatus, error) {
	switch s {
	case string(RunStarting):
		return RunStarting, nil
	case string(RunFinished):
		return RunFinished, nil
	case string(RunFailed):
		return RunFailed, nil
	default:
		return "", fmt.Errorf("'%s' is not TrainRunStatus", s)
	}
}

type Train struct {
	Id      string
	RealmId string

	ConfiguratorStatus TrainConfiguratorStatus

	// nil means "not requested yet".
	BuildStatus *TrainBuildStatus

	// nil means "not run yet". Non-nil run status blocks building.
	RunStatus *TrainRunStatus

	// Id of the Result of this train, if any.
	ResultId *string

	// Result attached by the lifecycle. It is not loaded from persistence.
	Result *Result
}

// NewTrain returns a train in its initial state.
func NewTrain(id, realmId string) Train {
	return Train{
		Id:                 id,
		RealmId:            realmId,
		ConfiguratorStatus: ConfiguratorPending,
	}
}

// Built reports build has been invoked for the train once.
func (t Train) Built() bool {
	return t.RunStatus != nil
}

// Building reports the execution pipeline owns the train.
func (t Train) Building() bool {
	return t.BuildStatus != nil && t.BuildStatus.InProgress()
}

func (t Train) Equal(o Train) bool {
	return t.Id == o.Id &&
		t.RealmId == o.RealmId &&
		t.ConfiguratorStatus == o.ConfiguratorStatus &&
		ptrEq(t.BuildStatus, o.BuildStatus) &&
		ptrEq(t.RunStatus, o.RunStatus) &&
		ptrEq(t.ResultId, o.ResultId)
}

func (t Train) String() string {
	build, run := "null", "null"
	if t.BuildStatus != nil {
		build = t.BuildStatus.String()
	}
	if t.RunStatus != nil {
		run = t.RunStatus.String()
	}
	return fmt.Sprintf("train{%s: (%s, %s, %s)}", t.Id, t.ConfiguratorStatus, build, run)
}

func ptrEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
