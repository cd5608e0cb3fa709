package agent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	want := decision{
		Thought: "click the login button",
		Done:    false,
		Actions: []ActionDescriptor{{Type: "click", Target: "#login"}},
	}

	cases := []struct {
		name     string
		response string
	}{
		{
			name:     "bare JSON",
			response: `{"thought":"click the login button","done":false,"actions":[{"type":"click","target":"#login"}]}`,
		},
		{
			name: "fenced JSON",
			response: "```json\n" +
				`{"thought":"click the login button","done":false,"actions":[{"type":"click","target":"#login"}]}` +
				"\n```",
		},
		{
			name: "JSON surrounded by prose",
			response: `Sure, here is my decision:
{"thought":"click the login button","done":false,"actions":[{"type":"click","target":"#login"}]}
Let me know how it goes.`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDecision(tc.response)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDecision_DoneWithoutActions(t *testing.T) {
	got, err := parseDecision(`{"thought":"finished","done":true,"actions":[]}`)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Empty(t, got.Actions)
}

func TestParseDecision_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no JSON at all", "I could not decide."},
		{"invalid JSON", `{"thought": "oops",`},
		{"neither actions nor done", `{"thought":"hmm","done":false,"actions":[]}`},
		{"empty response", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseDecision(tc.response)
			assert.Error(t, err)
		})
	}
}
