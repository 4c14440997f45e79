package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The wire format uses externally tagged unions: a variant is encoded as
// an object with exactly one key naming the variant, except unit variants
// which collapse to a bare string. Unknown fields are rejected everywhere.

// strictUnmarshal decodes data into v, rejecting unknown fields.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

// DecodeInvokeRequest parses a raw request body, rejecting unknown fields.
func DecodeInvokeRequest(data []byte) (*InvokeRequest, error) {
	req := &InvokeRequest{}
	if err := strictUnmarshal(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ActionKind names an action variant.
type ActionKind string

const (
	ActionKindCreatePipe     ActionKind = "createPipe"
	ActionKindCreateFile     ActionKind = "createFile"
	ActionKindOpenFile       ActionKind = "openFile"
	ActionKindOpenNullFile   ActionKind = "openNullFile"
	ActionKindCreateSandbox  ActionKind = "createSandbox"
	ActionKindCreateVolume   ActionKind = "createVolume"
	ActionKindExecuteCommand ActionKind = "executeCommand"
)

// Action is a tagged variant; exactly one field is non-nil.
type Action struct {
	CreatePipe     *CreatePipeAction
	CreateFile     *CreateFileAction
	OpenFile       *OpenFileAction
	OpenNullFile   *OpenNullFileAction
	CreateSandbox  *SandboxSettings
	CreateVolume   *VolumeSettings
	ExecuteCommand *Command
}

// Kind returns the variant name of the action.
func (a Action) Kind() ActionKind {
	switch {
	case a.CreatePipe != nil:
		return ActionKindCreatePipe
	case a.CreateFile != nil:
		return ActionKindCreateFile
	case a.OpenFile != nil:
		return ActionKindOpenFile
	case a.OpenNullFile != nil:
		return ActionKindOpenNullFile
	case a.CreateSandbox != nil:
		return ActionKindCreateSandbox
	case a.CreateVolume != nil:
		return ActionKindCreateVolume
	case a.ExecuteCommand != nil:
		return ActionKindExecuteCommand
	}
	return ""
}

func (a Action) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case a.CreatePipe != nil:
		payload = a.CreatePipe
	case a.CreateFile != nil:
		payload = a.CreateFile
	case a.OpenFile != nil:
		payload = a.OpenFile
	case a.OpenNullFile != nil:
		payload = a.OpenNullFile
	case a.CreateSandbox != nil:
		payload = a.CreateSandbox
	case a.CreateVolume != nil:
		payload = a.CreateVolume
	case a.ExecuteCommand != nil:
		payload = a.ExecuteCommand
	default:
		return nil, fmt.Errorf("action has no variant set")
	}
	return json.Marshal(map[ActionKind]any{a.Kind(): payload})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("action must be an object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("action must have exactly one variant, got %d", len(m))
	}
	*a = Action{}
	for key, raw := range m {
		switch ActionKind(key) {
		case ActionKindCreatePipe:
			a.CreatePipe = &CreatePipeAction{}
			return strictUnmarshal(raw, a.CreatePipe)
		case ActionKindCreateFile:
			a.CreateFile = &CreateFileAction{}
			return strictUnmarshal(raw, a.CreateFile)
		case ActionKindOpenFile:
			a.OpenFile = &OpenFileAction{}
			return strictUnmarshal(raw, a.OpenFile)
		case ActionKindOpenNullFile:
			a.OpenNullFile = &OpenNullFileAction{}
			return strictUnmarshal(raw, a.OpenNullFile)
		case ActionKindCreateSandbox:
			a.CreateSandbox = &SandboxSettings{}
			return strictUnmarshal(raw, a.CreateSandbox)
		case ActionKindCreateVolume:
			a.CreateVolume = &VolumeSettings{}
			return strictUnmarshal(raw, a.CreateVolume)
		case ActionKindExecuteCommand:
			a.ExecuteCommand = &Command{}
			return strictUnmarshal(raw, a.ExecuteCommand)
		default:
			return fmt.Errorf("unknown action variant %q", key)
		}
	}
	return nil
}

// ActionResult is the tagged outcome of one action. Unit variants encode
// as a bare string; executeCommand carries a CommandResult payload.
type ActionResult struct {
	Kind    ActionKind
	Command *CommandResult
}

func (r ActionResult) MarshalJSON() ([]byte, error) {
	if r.Kind == ActionKindExecuteCommand {
		if r.Command == nil {
			return nil, fmt.Errorf("executeCommand result is missing its payload")
		}
		return json.Marshal(map[ActionKind]*CommandResult{r.Kind: r.Command})
	}
	if r.Kind == "" {
		return nil, fmt.Errorf("action result has no kind")
	}
	return json.Marshal(string(r.Kind))
}

func (r *ActionResult) UnmarshalJSON(data []byte) error {
	*r = ActionResult{}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch ActionKind(s) {
		case ActionKindCreatePipe, ActionKindCreateFile, ActionKindOpenFile,
			ActionKindOpenNullFile, ActionKindCreateSandbox, ActionKindCreateVolume:
			r.Kind = ActionKind(s)
			return nil
		default:
			return fmt.Errorf("unknown action result %q", s)
		}
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("action result must be a string or object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("action result must have exactly one variant, got %d", len(m))
	}
	raw, ok := m[string(ActionKindExecuteCommand)]
	if !ok {
		return fmt.Errorf("unexpected action result object")
	}
	r.Kind = ActionKindExecuteCommand
	r.Command = &CommandResult{}
	return strictUnmarshal(raw, r.Command)
}

// LocalFileSource reads input data from a file on the host.
type LocalFileSource struct {
	Path string `json:"path"`
}

// InlineStringSource provides input data inline as a string.
type InlineStringSource struct {
	Data string `json:"data"`
}

// InlineBase64Source provides input data inline, base64-encoded.
type InlineBase64Source struct {
	Data string `json:"data"`
}

// InputSource is a tagged variant; exactly one field is non-nil.
type InputSource struct {
	LocalFile    *LocalFileSource
	InlineString *InlineStringSource
	InlineBase64 *InlineBase64Source
}

func (s InputSource) MarshalJSON() ([]byte, error) {
	switch {
	case s.LocalFile != nil:
		return json.Marshal(map[string]*LocalFileSource{"localFile": s.LocalFile})
	case s.InlineString != nil:
		return json.Marshal(map[string]*InlineStringSource{"inlineString": s.InlineString})
	case s.InlineBase64 != nil:
		return json.Marshal(map[string]*InlineBase64Source{"inlineBase64": s.InlineBase64})
	}
	return nil, fmt.Errorf("input source has no variant set")
}

func (s *InputSource) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("input source must be an object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("input source must have exactly one variant, got %d", len(m))
	}
	*s = InputSource{}
	for key, raw := range m {
		switch key {
		case "localFile":
			s.LocalFile = &LocalFileSource{}
			return strictUnmarshal(raw, s.LocalFile)
		case "inlineString":
			s.InlineString = &InlineStringSource{}
			return strictUnmarshal(raw, s.InlineString)
		case "inlineBase64":
			s.InlineBase64 = &InlineBase64Source{}
			return strictUnmarshal(raw, s.InlineBase64)
		default:
			return fmt.Errorf("unknown input source variant %q", key)
		}
	}
	return nil
}

// EnvVarValue is either a plain string or a file id whose stringified
// inherited descriptor number becomes the value.
type EnvVarValue struct {
	Plain *string
	File  *FileID
}

func (v EnvVarValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Plain != nil:
		return json.Marshal(map[string]string{"plain": *v.Plain})
	case v.File != nil:
		return json.Marshal(map[string]FileID{"file": *v.File})
	}
	return nil, fmt.Errorf("env var value has no variant set")
}

func (v *EnvVarValue) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("env var value must be an object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("env var value must have exactly one variant, got %d", len(m))
	}
	*v = EnvVarValue{}
	for key, raw := range m {
		switch key {
		case "plain":
			v.Plain = new(string)
			return strictUnmarshal(raw, v.Plain)
		case "file":
			v.File = new(FileID)
			return strictUnmarshal(raw, v.File)
		default:
			return fmt.Errorf("unknown env var value variant %q", key)
		}
	}
	return nil
}

// OutputRequestTarget selects what an output request exports: a registry
// file id, or a host file by path.
type OutputRequestTarget struct {
	File *FileID
	Path *string
}

func (t OutputRequestTarget) MarshalJSON() ([]byte, error) {
	switch {
	case t.File != nil:
		return json.Marshal(map[string]FileID{"file": *t.File})
	case t.Path != nil:
		return json.Marshal(map[string]string{"path": *t.Path})
	}
	return nil, fmt.Errorf("output request target has no variant set")
}

func (t *OutputRequestTarget) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("output request target must be an object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("output request target must have exactly one variant, got %d", len(m))
	}
	*t = OutputRequestTarget{}
	for key, raw := range m {
		switch key {
		case "file":
			t.File = new(FileID)
			return strictUnmarshal(raw, t.File)
		case "path":
			t.Path = new(string)
			return strictUnmarshal(raw, t.Path)
		default:
			return fmt.Errorf("unknown output request target variant %q", key)
		}
	}
	return nil
}

// OutputData carries exported bytes, base64-encoded.
type OutputData struct {
	InlineBase64 string `json:"inlineBase64"`
}

// PathPrefixKind names a path prefix variant.
type PathPrefixKind string

const (
	PathPrefixHost      PathPrefixKind = "host"
	PathPrefixVolume    PathPrefixKind = "volume"
	PathPrefixExtension PathPrefixKind = "extension"
)

// PathPrefix selects the root a prefixed path is resolved against.
// Host encodes as the bare string "host"; volume and extension carry
// a payload.
type PathPrefix struct {
	Kind      PathPrefixKind
	Volume    string
	Extension json.RawMessage
}

func (p PathPrefix) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PathPrefixHost:
		return json.Marshal(string(PathPrefixHost))
	case PathPrefixVolume:
		return json.Marshal(map[string]string{"volume": p.Volume})
	case PathPrefixExtension:
		return json.Marshal(map[string]json.RawMessage{"extension": p.Extension})
	}
	return nil, fmt.Errorf("path prefix has no variant set")
}

func (p *PathPrefix) UnmarshalJSON(data []byte) error {
	*p = PathPrefix{}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != string(PathPrefixHost) {
			return fmt.Errorf("unknown path prefix %q", s)
		}
		p.Kind = PathPrefixHost
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("path prefix must be a string or object: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("path prefix must have exactly one variant, got %d", len(m))
	}
	for key, raw := range m {
		switch PathPrefixKind(key) {
		case PathPrefixVolume:
			p.Kind = PathPrefixVolume
			return strictUnmarshal(raw, &p.Volume)
		case PathPrefixExtension:
			p.Extension = raw
			p.Kind = PathPrefixExtension
			return nil
		default:
			return fmt.Errorf("unknown path prefix variant %q", key)
		}
	}
	return nil
}

// PrefixedPath is a path expressed relative to a symbolic root.
type PrefixedPath struct {
	Prefix PathPrefix `json:"prefix"`
	Path   string     `json:"path"`
}
