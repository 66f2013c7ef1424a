package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// cheapArgon keeps hashing fast in tests.
func cheapArgon(t *testing.T) {
	t.Helper()
	t.Setenv("SESSIOND_PASSWORD_SALT", "sessiond-test-salt-01")
	t.Setenv("SESSIOND_ARGON2_MEMORY", "8192")
	t.Setenv("SESSIOND_ARGON2_TIME", "1")
	t.Setenv("SESSIOND_ARGON2_PARALLELISM", "1")
}

func envLines(out string) map[string]string {
	lines := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			lines[k] = v
		}
	}
	return lines
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "keygen", "hash", "account"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestKeygen_HS256(t *testing.T) {
	out, err := execute(t, "", "keygen", "--kid", "2026-10")
	require.NoError(t, err)

	lines := envLines(out)
	assert.Equal(t, "hs256", lines["SESSIOND_SIGNING_METHOD"])
	assert.Equal(t, "2026-10", lines["SESSIOND_KEY_ID"])
	key, err := base64.StdEncoding.DecodeString(lines["SESSIOND_SIGNING_KEY"])
	require.NoError(t, err)
	assert.Len(t, key, 32)

	again, err := execute(t, "", "keygen")
	require.NoError(t, err)
	assert.NotEqual(t, lines["SESSIOND_SIGNING_KEY"], envLines(again)["SESSIOND_SIGNING_KEY"])
}

func TestKeygen_Ed25519Hex(t *testing.T) {
	out, err := execute(t, "", "keygen", "--ed25519", "--hex")
	require.NoError(t, err)

	lines := envLines(out)
	assert.Equal(t, "ed25519", lines["SESSIOND_SIGNING_METHOD"])
	assert.True(t, strings.HasPrefix(lines["SESSIOND_SIGNING_KEY"], "hex:"))
	assert.Len(t, strings.TrimPrefix(lines["SESSIOND_SIGNING_KEY"], "hex:"), 128)
	assert.Len(t, strings.TrimPrefix(lines["SESSIOND_PUBLIC_KEY"], "hex:"), 64)
}

func TestKeygen_RejectsShortSecret(t *testing.T) {
	_, err := execute(t, "", "keygen", "--bytes", "8")
	require.Error(t, err)
	assertCode(t, err, "KEYGEN_INVALID")
}

func TestHash_ArgumentAndStdinAgree(t *testing.T) {
	cheapArgon(t)

	fromArg, err := execute(t, "", "hash", "correct horse")
	require.NoError(t, err)
	fromStdin, err := execute(t, "correct horse\n", "hash")
	require.NoError(t, err)

	assert.Equal(t, fromArg, fromStdin)
	assert.True(t, strings.HasPrefix(fromArg, "$argon2id$v=19$m=8192,t=1,p=1$"), fromArg)
}

func TestHash_MissingSalt(t *testing.T) {
	t.Setenv("SESSIOND_PASSWORD_SALT", "")
	_, err := execute(t, "", "hash", "pw")
	require.Error(t, err)
	assertCode(t, err, "CONFIG_SALT_MISSING")
}

func TestHash_CheckDigest(t *testing.T) {
	cheapArgon(t)

	out, err := execute(t, "", "hash", "correct horse")
	require.NoError(t, err)
	digest := strings.TrimSpace(out)

	out, err = execute(t, "", "hash", "--check", digest, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "match\n", out)

	_, err = execute(t, "", "hash", "--check", digest, "wrong horse")
	require.Error(t, err)
	assertCode(t, err, "DIGEST_MISMATCH")

	_, err = execute(t, "", "hash", "--check", "not-a-digest", "correct horse")
	require.Error(t, err)
	assertCode(t, err, "INPUT_INVALID")
}

func TestHash_CheckFlagsStaleDigest(t *testing.T) {
	cheapArgon(t)

	out, err := execute(t, "", "hash", "correct horse")
	require.NoError(t, err)
	digest := strings.TrimSpace(out)

	t.Setenv("SESSIOND_ARGON2_TIME", "2")
	out, err = execute(t, "", "hash", "--check", digest, "correct horse")
	require.NoError(t, err)
	assert.Contains(t, out, "stale")
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := newLogger(format)
		require.NoError(t, err, format)
		require.NotNil(t, logger)
	}

	_, err := newLogger("xml")
	require.Error(t, err)
	assertCode(t, err, "CONFIG_INVALID")
}
