package determinism

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/types"
)

func TestPinning_Env_IncludesEpochAndSeed(t *testing.T) {
	p := Pinning{Epoch: 1640995200, Seed: 42}
	env := p.Env()
	assert.Equal(t, "1640995200", env["SOURCE_DATE_EPOCH"])
	assert.Equal(t, "42", env["RANDOM_SEED"])
	assert.NotContains(t, env, "LD_PRELOAD")
}

func TestPinning_Env_AddsShimOnLinux(t *testing.T) {
	p := Pinning{Epoch: 1, Seed: 1, ShimPath: "/lib/forge-shim.so"}
	env := p.Env()
	if env["LD_PRELOAD"] == "" && env["DYLD_INSERT_LIBRARIES"] == "" {
		t.Skip("shim env var only set on linux/darwin")
	}
}

func TestPinning_CompilerFlags_GCCClang(t *testing.T) {
	p := Pinning{Seed: 42}
	flags := p.CompilerFlags(CompilerGCCClang, "/ws")
	require.Len(t, flags, 2)
	assert.Equal(t, "-frandom-seed=42", flags[0])
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestVerifier_ContentHash_DetectsMatch(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeFile(t, dirA, "out.bin", []byte("same content"))
	pathB := writeFile(t, dirB, "out.bin", []byte("same content"))

	v := New(hasher.New(0))
	result, err := v.Verify(types.VerifyContentHash, RunOutputs{"out.bin": pathA}, RunOutputs{"out.bin": pathB})
	require.NoError(t, err)
	assert.True(t, result.IsDeterministic)
	assert.Equal(t, 1, result.MatchingFiles)
}

func TestVerifier_ContentHash_DetectsDivergence(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeFile(t, dirA, "out.bin", []byte("run A output"))
	pathB := writeFile(t, dirB, "out.bin", []byte("run B output"))

	v := New(hasher.New(0))
	result, err := v.Verify(types.VerifyContentHash, RunOutputs{"out.bin": pathA}, RunOutputs{"out.bin": pathB})
	require.NoError(t, err)
	assert.False(t, result.IsDeterministic)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "out.bin", result.Violations[0].Path)
}

func TestVerifier_BitExact(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeFile(t, dirA, "a", []byte{1, 2, 3})
	pathB := writeFile(t, dirB, "a", []byte{1, 2, 3})

	v := New(hasher.New(0))
	result, err := v.Verify(types.VerifyBitExact, RunOutputs{"a": pathA}, RunOutputs{"a": pathB})
	require.NoError(t, err)
	assert.True(t, result.IsDeterministic)
}

func TestVerifier_MissingFileIsViolation(t *testing.T) {
	dirA := t.TempDir()
	pathA := writeFile(t, dirA, "only-in-a", []byte("x"))

	v := New(hasher.New(0))
	result, err := v.Verify(types.VerifyContentHash, RunOutputs{"only-in-a": pathA}, RunOutputs{})
	require.NoError(t, err)
	assert.False(t, result.IsDeterministic)
	require.Len(t, result.Violations, 1)
}

func TestStripARMetadata_ZeroesTimestampField(t *testing.T) {
	header := make([]byte, arMemberHeaderSize)
	copy(header, "file.o          ")
	copy(header[16:], "1700000000  ")
	copy(header[28:], "1000  ")
	copy(header[34:], "1000  ")
	copy(header[40:], "100644  ")
	copy(header[48:], "0         ")
	header[58], header[59] = '`', '\n'

	data := append([]byte(arGlobalHeader), header...)
	stripped := stripARMetadata(data)

	offset := len(arGlobalHeader)
	assert.NotContains(t, string(stripped[offset+16:offset+28]), "1700000000")
}

func TestRepairEngine_SuggestsEnvAndFlagForTimestampViolation(t *testing.T) {
	result := types.VerificationResult{
		Violations: []types.FileVerdict{{Path: "out.o", Matched: false}},
	}
	re := NewRepairEngine()
	actions := re.Suggest(result, Pinning{Epoch: 1640995200, Seed: 42})
	require.NotEmpty(t, actions)
	assert.Equal(t, types.RepairSetEnvVar, actions[0].Kind)
	assert.Contains(t, actions[0].Value, "SOURCE_DATE_EPOCH=1640995200")
}

func TestRepairEngine_DedupesIdenticalActions(t *testing.T) {
	result := types.VerificationResult{
		Violations: []types.FileVerdict{
			{Path: "a.o"},
			{Path: "b.o"},
		},
	}
	re := NewRepairEngine()
	actions := re.Suggest(result, Pinning{Epoch: 1, Seed: 1})

	seen := make(map[string]bool)
	for _, a := range actions {
		key := string(a.Kind) + a.Value
		assert.False(t, seen[key], "duplicate repair action %v", a)
		seen[key] = true
	}
}
