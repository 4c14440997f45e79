package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestActionUnmarshal tests decoding of the tagged action variants
func TestActionUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ActionKind
		wantErr  bool
	}{
		{
			name:     "create file",
			input:    `{"createFile":{"id":"out","readable":true,"writeable":true}}`,
			expected: ActionKindCreateFile,
		},
		{
			name:     "create pipe",
			input:    `{"createPipe":{"read":"r","write":"w"}}`,
			expected: ActionKindCreatePipe,
		},
		{
			name:     "open null file",
			input:    `{"openNullFile":{"id":"null"}}`,
			expected: ActionKindOpenNullFile,
		},
		{
			name:     "open file with host prefix",
			input:    `{"openFile":{"path":{"prefix":"host","path":"etc/hosts"},"id":"h"}}`,
			expected: ActionKindOpenFile,
		},
		{
			name:     "create volume",
			input:    `{"createVolume":{"name":"scratch","limit":1048576}}`,
			expected: ActionKindCreateVolume,
		},
		{
			name: "execute command",
			input: `{"executeCommand":{"sandboxName":"main","argv":["/bin/cat"],"env":[],` +
				`"cwd":"/","stdio":{"stdin":"in","stdout":"out","stderr":"null"}}}`,
			expected: ActionKindExecuteCommand,
		},
		{
			name:    "two variants",
			input:   `{"createPipe":{"read":"r","write":"w"},"openNullFile":{"id":"n"}}`,
			wantErr: true,
		},
		{
			name:    "unknown variant",
			input:   `{"launchMissiles":{}}`,
			wantErr: true,
		},
		{
			name:    "unknown field in payload",
			input:   `{"createFile":{"id":"out","readable":true,"writeable":true,"color":"red"}}`,
			wantErr: true,
		},
		{
			name:    "empty object",
			input:   `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Action
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, a.Kind())
		})
	}
}

// TestActionRoundTrip tests that marshaling preserves the variant shape
func TestActionRoundTrip(t *testing.T) {
	a := Action{CreateFile: &CreateFileAction{ID: "out", Readable: true, Writeable: false}}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var back Action
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.CreateFile)
	assert.Equal(t, FileID("out"), back.CreateFile.ID)
	assert.True(t, back.CreateFile.Readable)
	assert.False(t, back.CreateFile.Writeable)
}

// TestActionResultEncoding tests both the unit and payload result forms
func TestActionResultEncoding(t *testing.T) {
	data, err := json.Marshal(ActionResult{Kind: ActionKindCreatePipe})
	require.NoError(t, err)
	assert.JSONEq(t, `"createPipe"`, string(data))

	code := int64(0)
	cpu := uint64(1500000)
	mem := uint64(4096)
	res := ActionResult{
		Kind:    ActionKindExecuteCommand,
		Command: &CommandResult{ExitCode: code, CPUTime: &cpu, Memory: &mem},
	}
	data, err = json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"executeCommand":{"exitCode":0,"cpuTime":1500000,"memory":4096}}`, string(data))

	var back ActionResult
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Command)
	assert.Equal(t, code, back.Command.ExitCode)
}

// TestSpawnErrorSerialization tests the spawn failure result shape
func TestSpawnErrorSerialization(t *testing.T) {
	id := uuid.MustParse("b3345678-1234-5678-1234-567812345678")
	res := CommandResult{SpawnError: &id, ExitCode: 9223372036854775807}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"spawnError":"b3345678-1234-5678-1234-567812345678","exitCode":9223372036854775807,"cpuTime":null,"memory":null}`,
		string(data))
}

// TestInputSourceVariants tests input source decoding
func TestInputSourceVariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, s InputSource)
		wantErr bool
	}{
		{
			name:  "inline string",
			input: `{"inlineString":{"data":"hello"}}`,
			check: func(t *testing.T, s InputSource) {
				require.NotNil(t, s.InlineString)
				assert.Equal(t, "hello", s.InlineString.Data)
			},
		},
		{
			name:  "inline base64",
			input: `{"inlineBase64":{"data":"aGVsbG8="}}`,
			check: func(t *testing.T, s InputSource) {
				require.NotNil(t, s.InlineBase64)
				assert.Equal(t, "aGVsbG8=", s.InlineBase64.Data)
			},
		},
		{
			name:  "local file",
			input: `{"localFile":{"path":"/tmp/data"}}`,
			check: func(t *testing.T, s InputSource) {
				require.NotNil(t, s.LocalFile)
				assert.Equal(t, "/tmp/data", s.LocalFile.Path)
			},
		},
		{
			name:    "no variant",
			input:   `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s InputSource
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

// TestPathPrefixForms tests the three prefix encodings
func TestPathPrefixForms(t *testing.T) {
	var p PathPrefix
	require.NoError(t, json.Unmarshal([]byte(`"host"`), &p))
	assert.Equal(t, PathPrefixHost, p.Kind)

	require.NoError(t, json.Unmarshal([]byte(`{"volume":"scratch"}`), &p))
	assert.Equal(t, PathPrefixVolume, p.Kind)
	assert.Equal(t, "scratch", p.Volume)

	require.NoError(t, json.Unmarshal([]byte(`{"extension":{"name":"EXTRA_FILES"}}`), &p))
	assert.Equal(t, PathPrefixExtension, p.Kind)

	err := json.Unmarshal([]byte(`"garden"`), &p)
	assert.Error(t, err)
}

// TestEnvVarValueVariants tests plain and file env values
func TestEnvVarValueVariants(t *testing.T) {
	var v EnvVarValue
	require.NoError(t, json.Unmarshal([]byte(`{"plain":"yes"}`), &v))
	require.NotNil(t, v.Plain)
	assert.Equal(t, "yes", *v.Plain)

	require.NoError(t, json.Unmarshal([]byte(`{"file":"token"}`), &v))
	require.NotNil(t, v.File)
	assert.Equal(t, FileID("token"), *v.File)
}

// TestOutputRequestTargetVariants tests file and path targets
func TestOutputRequestTargetVariants(t *testing.T) {
	var target OutputRequestTarget
	require.NoError(t, json.Unmarshal([]byte(`{"file":"out"}`), &target))
	require.NotNil(t, target.File)
	assert.Equal(t, FileID("out"), *target.File)

	require.NoError(t, json.Unmarshal([]byte(`{"path":"/var/result"}`), &target))
	require.NotNil(t, target.Path)
	assert.Equal(t, "/var/result", *target.Path)
}

// TestInvokeRequestDecode tests a full request document
func TestInvokeRequestDecode(t *testing.T) {
	doc := `{
		"id": "11112222-3333-4444-5555-666677778888",
		"steps": [
			{"stage": 0, "action": {"createFile": {"id": "out", "readable": true, "writeable": true}}},
			{"stage": 1, "action": {"executeCommand": {
				"sandboxName": "main",
				"argv": ["/bin/cat"],
				"env": [{"name": "MODE", "value": {"plain": "fast"}}],
				"cwd": "/",
				"stdio": {"stdin": "in", "stdout": "out", "stderr": "null"}
			}}}
		],
		"inputs": [{"fileId": "in", "source": {"inlineString": {"data": "hello"}}}],
		"outputs": [{"name": "result", "target": {"file": "out"}}]
	}`

	var req InvokeRequest
	require.NoError(t, strictUnmarshal([]byte(doc), &req))
	assert.Equal(t, uuid.MustParse("11112222-3333-4444-5555-666677778888"), req.ID)
	require.Len(t, req.Steps, 2)
	assert.Equal(t, ActionKindCreateFile, req.Steps[0].Action.Kind())
	assert.Equal(t, ActionKindExecuteCommand, req.Steps[1].Action.Kind())
	require.Len(t, req.Inputs, 1)
	assert.Equal(t, FileID("in"), req.Inputs[0].FileID)
	require.Len(t, req.Outputs, 1)
	assert.Equal(t, "result", req.Outputs[0].Name)
}
