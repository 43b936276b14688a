package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *cobra.Command {
	root := &cobra.Command{Use: "docchat", Short: "chat with your documents"}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	root.PersistentFlags().String("api-token", "", "API token")
	AddHelpJSONFlag(root)

	chat := &cobra.Command{
		Use:   "chat <document-id> <message...>",
		Short: "Ask a question about a document",
		Args:  cobra.MinimumNArgs(2),
		RunE:  func(*cobra.Command, []string) error { return nil },
	}
	chat.Flags().Bool("sources", false, "Print the source chunks")

	login := &cobra.Command{Use: "login", RunE: func(*cobra.Command, []string) error { return nil }}
	login.Flags().String("token", "", "API token")
	_ = login.MarkFlagRequired("token")

	hidden := &cobra.Command{Use: "debug", Hidden: true}

	root.AddCommand(chat, login, hidden)
	return root
}

func findSub(t *testing.T, schema CommandSchema, name string) CommandSchema {
	t.Helper()
	for _, sub := range schema.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	t.Fatalf("subcommand %q not in schema", name)
	return CommandSchema{}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(newTestTree())

	assert.Equal(t, "docchat", schema.Name)
	assert.Len(t, schema.Subcommands, 2, "hidden commands are left out")

	chat := findSub(t, schema, "chat")
	assert.Equal(t, []string{"document-id", "message..."}, chat.Args)
	require.Len(t, chat.Flags, 1)
	assert.Equal(t, "sources", chat.Flags[0].Name)
	assert.Equal(t, "bool", chat.Flags[0].Type)

	var globals []string
	for _, f := range chat.GlobalFlags {
		globals = append(globals, f.Name)
	}
	assert.ElementsMatch(t, []string{"output", "api-token"}, globals)

	login := findSub(t, schema, "login")
	assert.Empty(t, login.Args)
	require.Len(t, login.Flags, 1)
	assert.True(t, login.Flags[0].Required)
}

func TestCheckHelpJSON(t *testing.T) {
	t.Run("writes schema of the named command", func(t *testing.T) {
		root := newTestTree()
		var out bytes.Buffer
		root.SetOut(&out)

		handled, err := CheckHelpJSON(root, []string{"chat", "--help-json"})

		require.NoError(t, err)
		assert.True(t, handled)
		var schema CommandSchema
		require.NoError(t, json.Unmarshal(out.Bytes(), &schema))
		assert.Equal(t, "chat", schema.Name)
	})

	t.Run("unknown path falls back to the deepest match", func(t *testing.T) {
		root := newTestTree()
		var out bytes.Buffer
		root.SetOut(&out)

		handled, err := CheckHelpJSON(root, []string{"nope", "--help-json"})

		require.NoError(t, err)
		assert.True(t, handled)
		assert.Contains(t, out.String(), `"name": "docchat"`)
	})

	t.Run("absent flag is not handled", func(t *testing.T) {
		root := newTestTree()
		var out bytes.Buffer
		root.SetOut(&out)

		handled, err := CheckHelpJSON(root, []string{"chat", "doc", "hi"})

		require.NoError(t, err)
		assert.False(t, handled)
		assert.Empty(t, out.String())
	})
}
