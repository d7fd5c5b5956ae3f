package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelope(t *testing.T) {
	frame, err := Encode(Output{ExecutionID: "e1", Type: "stdout", Content: "hello"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"output","data":{"executionId":"e1","type":"stdout","content":"hello"}}`, string(frame))
}

func TestEncodeEmptyListsAsArrays(t *testing.T) {
	frame, err := Encode(Commands{ExecutionID: "e1", RiskLevel: "LOW"})
	require.NoError(t, err)

	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &env))

	assert.Equal(t, []any{}, env.Data["commands"])
	assert.Equal(t, []any{}, env.Data["warnings"])
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "execute",
			frame: `{"event":"execute","data":{"serverId":"s1","prompt":" update system ","dryRun":true}}`,
			want:  Execute{ServerID: "s1", Prompt: "update system", DryRun: true},
		},
		{
			name:  "execute without dryRun",
			frame: `{"event":"execute","data":{"serverId":"s1","prompt":"uptime"}}`,
			want:  Execute{ServerID: "s1", Prompt: "uptime"},
		},
		{
			name:  "confirm",
			frame: `{"event":"confirm","data":{"executionId":"e1"}}`,
			want:  Confirm{ExecutionID: "e1"},
		},
		{
			name:  "cancel",
			frame: `{"event":"cancel","data":{"executionId":"e1"}}`,
			want:  Cancel{ExecutionID: "e1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInboundRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		cause error
	}{
		{"not json", `execute`, nil},
		{"no kind", `{"data":{}}`, ErrMissingField},
		{"unknown kind", `{"event":"reboot","data":{}}`, ErrUnknownEvent},
		{"outbound kind", `{"event":"complete","data":{"success":true}}`, ErrWrongDirection},
		{"missing data", `{"event":"confirm"}`, ErrMissingField},
		{"null data", `{"event":"cancel","data":null}`, ErrMissingField},
		{"wrong field type", `{"event":"execute","data":{"serverId":1,"prompt":"x"}}`, nil},
		{"missing server", `{"event":"execute","data":{"prompt":"x"}}`, ErrMissingField},
		{"blank prompt", `{"event":"execute","data":{"serverId":"s1","prompt":"  "}}`, ErrMissingField},
		{"missing execution id", `{"event":"confirm","data":{}}`, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEvent), err)

			if tt.cause != nil {
				assert.True(t, errors.Is(err, tt.cause), err)
			}
		})
	}
}

func TestDecodeOutboundRoundTrip(t *testing.T) {
	sent := []Event{
		Status{ExecutionID: "e1", Status: "PLANNING", Message: "Creating plan"},
		PlanEvent{ExecutionID: "e1", Plan: Plan{Objective: "update", Steps: []string{"a"}, Risks: []string{}, EstimatedTime: "1m"}},
		Commands{ExecutionID: "e1", Commands: []string{"apt update"}, RiskLevel: "LOW", Warnings: []string{}},
		Output{ExecutionID: "e1", Type: "stderr", Content: "warn"},
		Blocked{ExecutionID: "e1", BlockedCommands: []string{"rm -rf /"}, Reason: "destructive"},
		Complete{ExecutionID: "e1", Success: true, Analysis: Analysis{Summary: "ok", NextSteps: []string{}}},
		Error{Message: "unknown execution"},
	}

	for _, e := range sent {
		t.Run(string(e.Kind()), func(t *testing.T) {
			frame, err := Encode(e)
			require.NoError(t, err)

			got, err := DecodeOutbound(frame)
			require.NoError(t, err)
			assert.Equal(t, e, got)
		})
	}
}

func TestDecodeOutboundRejectsInbound(t *testing.T) {
	_, err := DecodeOutbound([]byte(`{"event":"execute","data":{"serverId":"s1","prompt":"x"}}`))

	assert.True(t, errors.Is(err, ErrWrongDirection))
}

func TestExecutionID(t *testing.T) {
	assert.Equal(t, "e1", ExecutionID(Complete{ExecutionID: "e1"}))
	assert.Equal(t, "e2", ExecutionID(Cancel{ExecutionID: "e2"}))
	assert.Equal(t, "", ExecutionID(Execute{ServerID: "s1"}))
}
