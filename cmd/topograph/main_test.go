package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "topograph version "+topograph.Version+"\n", out)
}

func TestNormalize(t *testing.T) {
	out, err := run(t, "", "normalize", "--report=false", "-o", "json", "testdata/uplink.yaml")
	require.NoError(t, err)

	var ch struct {
		ID     string `json:"id"`
		Signal string `json:"signal"`
		Edges  []struct {
			ID           string `json:"id"`
			SourceHandle string `json:"sourceHandle"`
			TargetHandle string `json:"targetHandle"`
			Direction    string `json:"direction"`
			Label        string `json:"label"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ch))
	assert.Equal(t, "channel-7", ch.ID)
	assert.Equal(t, "sig-7", ch.Signal)
	require.Len(t, ch.Edges, 2)
	assert.Equal(t, "out-right-1", ch.Edges[0].SourceHandle)
	assert.Equal(t, "in-left-1", ch.Edges[0].TargetHandle)
	assert.Equal(t, "IDA IRD 1", ch.Edges[0].Label)
	assert.Equal(t, "vuelta", ch.Edges[1].Direction)
}

func TestNormalize_StdinWithReport(t *testing.T) {
	out, err := run(t, `{"nodes": [{"id": "a"}, {"id": "a"}]}`, "normalize", "--report", "-o", "json", "-")
	require.NoError(t, err)

	var body struct {
		Report struct {
			DuplicateNodes int `json:"duplicateNodes"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, 1, body.Report.DuplicateNodes)
}

func TestNormalize_YAMLOutput(t *testing.T) {
	out, err := run(t, "", "normalize", "--report=false", "-o", "yaml", "testdata/uplink.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "id: channel-7")
	assert.Contains(t, out, "sourceHandle: out-right-1")
}

func TestNormalize_BadInput(t *testing.T) {
	_, err := run(t, "{", "normalize", "-")
	assert.Error(t, err)

	_, err = run(t, "", "normalize", "testdata/absent.json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "", "validate", "--json=false", "--pretty=false", "testdata/uplink.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Diagram is valid!")

	out, err = run(t, "", "validate", "--json", "testdata/broken.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out, `"code": "collision"`)
	assert.Contains(t, out, `"code": "duplicate_node"`)
	assert.Contains(t, out, `"code": "unresolved_edge"`)

	out, err = run(t, "", "validate", "--json=false", "--pretty", "testdata/broken.json")
	require.Error(t, err)
	assert.Contains(t, out, "collision")
	assert.Contains(t, out, "problem(s) found")
}

func TestRender(t *testing.T) {
	out, err := run(t, "", "render", "--highlight=false", "testdata/uplink.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `sat_1(("Hispasat"))`)
	assert.Contains(t, out, `sat_1 -- "IDA IRD 1" --> ird_1`)
	assert.Contains(t, out, `mon -.-> enc`)
	assert.NotContains(t, out, "classDef")

	out, err = run(t, "", "render", "--highlight", "--focus", "x", "testdata/broken.json")
	require.NoError(t, err)
	assert.Contains(t, out, "class hub problem;")
	assert.Contains(t, out, "class x focus;")
}
