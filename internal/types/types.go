// Package types holds identifiers shared across the srgan packages: the
// module name errors are registered under and the logging subsystems.
package types

const ModuleName = "srgan"

// SubSystem tags log records with the component that emitted them.
type SubSystem string

const (
	Model      SubSystem = "model"
	Network    SubSystem = "network"
	Train      SubSystem = "train"
	Device     SubSystem = "device"
	Checkpoint SubSystem = "checkpoint"
	Config     SubSystem = "config"
	Data       SubSystem = "data"
)
