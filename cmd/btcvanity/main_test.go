package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/internal/ui"
	"github.com/Amr-9/btcvanity/pkg/generator"
)

func TestBuildRequestFromFlags(t *testing.T) {
	t.Parallel()

	opts := &options{
		Type:        "p2wpkh",
		Pattern:     "qz",
		Position:    "end",
		MaxAttempts: 500,
	}
	req, err := buildRequest(opts, nil)
	require.NoError(t, err)

	require.Equal(t, generator.FormatNativeSegWit, req.Format)
	require.Equal(t, "qz", req.Pattern)
	require.Equal(t, generator.PositionEnd, req.Position)
	require.Equal(t, uint64(500), req.AttemptLimit.UnwrapOr(0))

	opts.MaxAttempts = 0
	req, err = buildRequest(opts, nil)
	require.NoError(t, err)
	require.True(t, req.AttemptLimit.IsNone())

	opts.Type = "p2pk"
	_, err = buildRequest(opts, nil)
	require.ErrorIs(t, err, generator.ErrUnsupportedFormat)

	opts.Type = "p2pkh"
	opts.Position = "left"
	_, err = buildRequest(opts, nil)
	require.Error(t, err)
}

func TestBuildRequestPrompts(t *testing.T) {
	t.Parallel()

	prompter := ui.NewPrompter(strings.NewReader("1\nabc\n2\n"), io.Discard)
	req, err := buildRequest(&options{}, prompter)
	require.NoError(t, err)

	require.Equal(t, generator.FormatLegacy, req.Format)
	require.Equal(t, "abc", req.Pattern)
	require.Equal(t, generator.PositionMiddle, req.Position)
}

func TestSaveResult(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wallet.txt")
	res := &generator.Result{
		Format:     generator.FormatLegacy,
		Address:    "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
		PrivateKey: "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn",
		Attempts:   12345,
	}
	require.NoError(t, saveResult(path, res, 3*time.Second))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), res.Address)
	require.Contains(t, string(content), res.PrivateKey)
	require.Contains(t, string(content), "12,345")
	require.Contains(t, string(content), "Legacy (P2PKH)")

	require.Error(t, saveResult(path, nil, 0))
}
