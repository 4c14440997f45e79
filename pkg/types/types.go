package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// FileID identifies a file-like object (regular file, pipe end, buffer,
// null source) within a single invocation request.
type FileID string

// Extensions is an arbitrary key-value bag consumed by the shim.
// The engine rejects any request that still carries non-empty extensions.
type Extensions map[string]json.RawMessage

// InvokeRequest is the full execution plan for one invocation.
type InvokeRequest struct {
	ID      uuid.UUID       `json:"id"`
	Steps   []Step          `json:"steps"`
	Inputs  []Input         `json:"inputs"`
	Outputs []OutputRequest `json:"outputs"`
	Ext     Extensions      `json:"ext,omitempty"`
}

// InvokeResponse reports the outcome of every action plus requested outputs.
type InvokeResponse struct {
	ID      uuid.UUID      `json:"id"`
	Outputs []Output       `json:"outputs"`
	Actions []ActionResult `json:"actions"`
}

// Step pairs a stage ordering key with an action.
type Step struct {
	Stage  uint32     `json:"stage"`
	Action Action     `json:"action"`
	Ext    Extensions `json:"ext,omitempty"`
}

// Input preloads file contents under a FileID before any step runs.
type Input struct {
	FileID FileID      `json:"fileId"`
	Source InputSource `json:"source"`
	Ext    Extensions  `json:"ext,omitempty"`
}

// OutputRequest names data that must be returned in the response.
type OutputRequest struct {
	Name   string              `json:"name"`
	Target OutputRequestTarget `json:"target"`
	Ext    Extensions          `json:"ext,omitempty"`
}

// Output carries the bytes collected for one OutputRequest.
type Output struct {
	Name string     `json:"name"`
	Data OutputData `json:"data"`
}

// CreatePipeAction allocates an anonymous pipe exposing both ends.
type CreatePipeAction struct {
	Read  FileID `json:"read"`
	Write FileID `json:"write"`
}

// CreateFileAction creates a file under the request work directory.
// At least one of Readable and Writeable must be set.
type CreateFileAction struct {
	ID        FileID `json:"id"`
	Readable  bool   `json:"readable"`
	Writeable bool   `json:"writeable"`
}

// OpenFileAction binds an existing host file to an id, read-only.
type OpenFileAction struct {
	Path PrefixedPath `json:"path"`
	ID   FileID       `json:"id"`
}

// OpenNullFileAction binds an id to the null device: reads see an empty
// source and writes are discarded.
type OpenNullFileAction struct {
	ID FileID `json:"id"`
}

// Command describes a child process to run inside a named sandbox.
type Command struct {
	SandboxName string                `json:"sandboxName"`
	Argv        []string              `json:"argv"`
	Env         []EnvironmentVariable `json:"env"`
	Cwd         string                `json:"cwd"`
	Stdio       Stdio                 `json:"stdio"`
	Ext         Extensions            `json:"ext,omitempty"`
}

// EnvironmentVariable is one name=value entry in a command environment.
type EnvironmentVariable struct {
	Name  string      `json:"name"`
	Value EnvVarValue `json:"value"`
	Ext   Extensions  `json:"ext,omitempty"`
}

// Stdio binds the three standard streams to file ids.
type Stdio struct {
	Stdin  FileID     `json:"stdin"`
	Stdout FileID     `json:"stdout"`
	Stderr FileID     `json:"stderr"`
	Ext    Extensions `json:"ext,omitempty"`
}

// SharedDirMode is the access granted to an exposed directory.
type SharedDirMode string

const (
	SharedDirModeReadOnly  SharedDirMode = "readOnly"
	SharedDirModeReadWrite SharedDirMode = "readWrite"
)

// SharedDir is a piece of host filesystem exposed inside a sandbox.
type SharedDir struct {
	HostPath    PrefixedPath  `json:"hostPath"`
	SandboxPath string        `json:"sandboxPath"`
	Mode        SharedDirMode `json:"mode"`
	Create      bool          `json:"create,omitempty"`
	Ext         Extensions    `json:"ext,omitempty"`
}

// Limits are enforced for all processes of a sandbox.
type Limits struct {
	// Memory limit in bytes.
	Memory uint64 `json:"memory"`
	// CPU time limit in milliseconds.
	Time uint64 `json:"time"`
	// Alive process count limit.
	ProcessCount *uint64 `json:"processCount,omitempty"`
	// Working dir size limit in bytes.
	WorkDirSize *uint64    `json:"workDirSize,omitempty"`
	Ext         Extensions `json:"ext,omitempty"`
}

// SandboxSettings describes one isolated execution domain.
type SandboxSettings struct {
	Limits Limits `json:"limits"`
	// Name is unique within the request.
	Name string `json:"name"`
	// BaseImage is the rootfs directory shared read-only into the sandbox.
	// The special value "/" exposes a configured set of host top-level
	// directories instead of a full image.
	BaseImage string `json:"baseImage"`
	// Expose lists additional paths mounted into the sandbox.
	Expose []SharedDir `json:"expose"`
	// WorkDir is bound to an initially empty, writable scratch directory.
	WorkDir string     `json:"workDir"`
	Ext     Extensions `json:"ext,omitempty"`
}

// VolumeSettings describes a named scratch directory addressable through
// a volume path prefix.
type VolumeSettings struct {
	Name string `json:"name"`
	// Limit is the volume size quota in bytes. When set, the volume is
	// backed by a size-limited tmpfs.
	Limit *uint64    `json:"limit,omitempty"`
	Ext   Extensions `json:"ext,omitempty"`
}

// CommandResult is the outcome of one ExecuteCommand action.
type CommandResult struct {
	// SpawnError is set when the command failed to start. The remaining
	// fields carry unspecified values in that case.
	SpawnError *uuid.UUID `json:"spawnError,omitempty"`
	// ExitCode of the process.
	ExitCode int64 `json:"exitCode"`
	// CPU time usage in nanoseconds.
	CPUTime *uint64 `json:"cpuTime"`
	// Memory usage in bytes.
	Memory *uint64 `json:"memory"`
}
