package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "ragsync", Short: "RAG client"}
	AddHelpJSONFlag(root)
	root.PersistentFlags().String("api-key", "", "API key")

	vectors := &cobra.Command{Use: "vectors", Short: "Inspect the index", Aliases: []string{"vec"}}
	del := &cobra.Command{Use: "delete", Short: "Delete records", RunE: func(*cobra.Command, []string) error { return nil }}
	del.Flags().StringP("namespace", "n", "", "Namespace")
	del.Flags().StringSlice("ids", nil, "Record IDs")
	_ = del.MarkFlagRequired("namespace")
	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	vectors.AddCommand(del, hidden)
	root.AddCommand(vectors)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "ragsync", schema.Name)
	assert.False(t, schema.Runnable)
	require.Len(t, schema.Subcommands, 1)

	vectors := schema.Subcommands[0]
	assert.Equal(t, []string{"vec"}, vectors.Aliases)
	require.Len(t, vectors.Subcommands, 1, "hidden commands are skipped")

	del := vectors.Subcommands[0]
	assert.Equal(t, "ragsync vectors delete", del.Path)
	assert.True(t, del.Runnable)
	require.Len(t, del.Flags, 3)

	assert.Equal(t, "ids", del.Flags[0].Name)
	assert.Equal(t, "stringSlice", del.Flags[0].Type)
	assert.False(t, del.Flags[0].Required)

	assert.Equal(t, "namespace", del.Flags[1].Name)
	assert.Equal(t, "n", del.Flags[1].Shorthand)
	assert.True(t, del.Flags[1].Required)

	assert.Equal(t, "api-key", del.Flags[2].Name)
	assert.True(t, del.Flags[2].Inherited)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ragsync", decoded.Name)
	assert.NotContains(t, buf.String(), "help-json")
}

func TestHelpJSONTarget(t *testing.T) {
	root := testTree()

	tests := []struct {
		name     string
		args     []string
		wantOK   bool
		wantPath string
	}{
		{name: "absent", args: []string{"vectors", "delete"}},
		{name: "root", args: []string{"--help-json"}, wantOK: true, wantPath: "ragsync"},
		{name: "nested", args: []string{"vectors", "delete", "--help-json"}, wantOK: true, wantPath: "ragsync vectors delete"},
		{name: "alias", args: []string{"vec", "--help-json"}, wantOK: true, wantPath: "ragsync vectors"},
		{name: "flags end the path", args: []string{"vectors", "delete", "-n", "docs", "--help-json"}, wantOK: true, wantPath: "ragsync vectors delete"},
		{name: "unknown subcommand", args: []string{"nope", "--help-json"}, wantOK: true, wantPath: "ragsync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := HelpJSONTarget(root, tt.args)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPath, target.CommandPath())
			}
		})
	}
}
