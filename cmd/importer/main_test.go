package main

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("importer"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestRunFlags(t *testing.T) {
	cli, kctx := parse(t, "run", "--source", "osonish", "--max-pages", "3", "--contacts", "required")
	assert.Equal(t, "run", kctx.Command())
	assert.Equal(t, "osonish", cli.Run.Source)
	assert.Equal(t, 3, cli.Run.MaxPages)
	require.NotNil(t, cli.Run.onlyWithContacts())
	assert.True(t, *cli.Run.onlyWithContacts())

	cli, _ = parse(t, "run")
	assert.Nil(t, cli.Run.onlyWithContacts(), "config default applies")

	cli, _ = parse(t, "run", "--contacts", "any")
	require.NotNil(t, cli.Run.onlyWithContacts())
	assert.False(t, *cli.Run.onlyWithContacts())
}

func TestRemapRequiresSource(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("importer"))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"remap"})
	assert.Error(t, err)
}
