package framework

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "contracts/MetaNFT.sol", "MetaNFT", returnsStop)

	artifact, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "MetaNFT", artifact.ContractName)
	assert.Equal(t, "contracts/MetaNFT.sol", artifact.SourceName)
	assert.Len(t, artifact.Bytecode, 13)
	assert.Empty(t, artifact.SolcVersion)
}

func TestReadArtifact_SolcVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "contracts/MetaNFT.sol", "MetaNFT", returnsStop)

	writeJSON(t, filepath.Join(dir, "contracts/MetaNFT.sol", "MetaNFT.dbg.json"), map[string]string{
		"_format":   "hh-sol-dbg-1",
		"buildInfo": "../../build-info/abc123.json",
	})
	writeJSON(t, filepath.Join(dir, "build-info", "abc123.json"), map[string]string{
		"solcVersion": "0.8.9",
	})

	artifact, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "0.8.9", artifact.SolcVersion)
}

func TestReadArtifact_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not json",
			content: "{",
		},
		{
			name:    "wrong format",
			content: `{"_format":"foundry","contractName":"A","abi":[],"bytecode":"0x00"}`,
		},
		{
			name:    "unlinked library",
			content: `{"contractName":"A","abi":[],"bytecode":"0x00","linkReferences":{"contracts/Lib.sol":{}}}`,
		},
		{
			name:    "bad bytecode",
			content: `{"contractName":"A","abi":[],"bytecode":"0x__$abc$__"}`,
		},
		{
			name:    "empty bytecode",
			content: `{"contractName":"IERC721","abi":[],"bytecode":"0x"}`,
		},
		{
			name:    "bad abi",
			content: `{"contractName":"A","abi":{"type":1},"bytecode":"0x00"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "A.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := ReadArtifact(path)
			assert.Error(t, err)
		})
	}
}

func TestArtifactStore_Lookup(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "contracts/MetaNFT.sol", "MetaNFT", returnsStop)
	writeArtifact(t, dir, "contracts/Token.sol", "Token", returnsStop)
	writeArtifact(t, dir, "contracts/other/Token.sol", "Token", returnsStop)
	// build info directory must be ignored even if a file name collides
	writeJSON(t, filepath.Join(dir, "build-info", "MetaNFT.json"), map[string]string{"solcVersion": "0.8.9"})

	store := NewArtifactStore(dir)

	t.Run("bare name", func(t *testing.T) {
		artifact, err := store.Lookup("MetaNFT")
		require.NoError(t, err)
		assert.Equal(t, "MetaNFT", artifact.ContractName)
	})

	t.Run("fully qualified name", func(t *testing.T) {
		artifact, err := store.Lookup("contracts/other/Token.sol:Token")
		require.NoError(t, err)
		assert.Equal(t, "contracts/other/Token.sol", artifact.SourceName)
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := store.Lookup("Token")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrArtifactNotFound))
		assert.Contains(t, err.Error(), "contracts/Token.sol:Token")
		assert.Contains(t, err.Error(), "contracts/other/Token.sol:Token")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := store.Lookup("Missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrArtifactNotFound))

		var artErr *ArtifactError
		require.True(t, errors.As(err, &artErr))
		assert.Equal(t, "Missing", artErr.Name)
	})

	t.Run("unknown fully qualified", func(t *testing.T) {
		_, err := store.Lookup("contracts/Missing.sol:Missing")
		assert.True(t, errors.Is(err, ErrArtifactNotFound))
	})

	t.Run("fully qualified name outside the directory", func(t *testing.T) {
		outside := filepath.Join(dir, "..", "escaped")
		writeArtifact(t, outside, "x.sol", "Y", returnsStop)

		for _, name := range []string{
			"../escaped/x.sol:Y",
			"contracts/../../escaped/x.sol:Y",
			filepath.ToSlash(filepath.Join(outside, "x.sol")) + ":Y",
			"contracts/MetaNFT.sol:../MetaNFT",
			"contracts/MetaNFT.sol:",
		} {
			_, err := store.Lookup(name)
			require.Error(t, err, name)
			assert.False(t, errors.Is(err, ErrArtifactNotFound), name)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := store.Lookup("")
		assert.Error(t, err)
	})
}

func TestArtifactStore_MissingDir(t *testing.T) {
	store := NewArtifactStore(filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := store.Lookup("MetaNFT")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}
