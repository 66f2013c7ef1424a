package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("config-test-signing-key-0123456789"))

// clearEnv blanks every SESSIOND_* variable for the test and unsets it so
// .env files may populate it.
func clearEnv(t *testing.T) {
	t.Helper()
	fs := pflag.NewFlagSet("keys", pflag.ContinueOnError)
	RegisterFlags(fs)
	keys := []string{KeyLogFormat}
	fs.VisitAll(func(f *pflag.Flag) { keys = append(keys, f.Name) })
	for _, k := range keys {
		name := envName(k)
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func envName(key string) string {
	out := []byte(EnvPrefix + "_")
	for _, c := range []byte(key) {
		switch {
		case c == '-':
			out = append(out, '_')
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSIOND_SIGNING_KEY", testKey)
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")
	t.Setenv("SESSIOND_TTL", "30m")
	t.Setenv("SESSIOND_ISSUER", "auth.example")
	t.Setenv("SESSIOND_MAX_LOGIN_ATTEMPTS", "7")

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.TTL)
	assert.Equal(t, "auth.example", cfg.Issuer)
	assert.Equal(t, "sessiond", cfg.Audience)
	assert.Equal(t, 7, cfg.MaxLoginAttempts)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []byte("config-test-signing-key-0123456789"), cfg.SigningKey)
	assert.Equal(t, uint32(65536), cfg.Argon2Memory)
	assert.Equal(t, uint8(2), cfg.Argon2Parallelism)
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSIOND_SIGNING_KEY", testKey)
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")
	t.Setenv("SESSIOND_LISTEN", ":9000")
	t.Setenv("SESSIOND_AUDIENCE", "from-env")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", ":7000"}))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "from-env", cfg.Audience)
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SESSIOND_SIGNING_KEY=hex:00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff\n" +
		"SESSIOND_PASSWORD_SALT=dotenv-salt-00000001\n" +
		"SESSIOND_REDIS_ADDR=localhost:6380\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SESSIOND_REDIS_ADDR", "localhost:6399")

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Len(t, cfg.SigningKey, 32)
	assert.Equal(t, []byte("dotenv-salt-00000001"), cfg.PasswordSalt)
	assert.Equal(t, "localhost:6399", cfg.RedisAddr, "process env wins over .env")
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSIOND_SIGNING_KEY", testKey)
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")

	_, err := Load(nil, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		code string
	}{
		{
			name: "missing signing key",
			env:  map[string]string{"SESSIOND_PASSWORD_SALT": "config-test-salt-0001"},
			code: CodeSigningKeyMissing,
		},
		{
			name: "undecodable signing key",
			env:  map[string]string{"SESSIOND_SIGNING_KEY": "hex:zz", "SESSIOND_PASSWORD_SALT": "config-test-salt-0001"},
			code: CodeSigningKeyInvalid,
		},
		{
			name: "missing salt",
			env:  map[string]string{"SESSIOND_SIGNING_KEY": testKey},
			code: CodeSaltMissing,
		},
		{
			name: "malformed verify keys",
			env: map[string]string{
				"SESSIOND_SIGNING_KEY":   testKey,
				"SESSIOND_PASSWORD_SALT": "config-test-salt-0001",
				"SESSIOND_VERIFY_KEYS":   "no-separator",
			},
			code: CodeVerifyKeysInvalid,
		},
		{
			name: "duplicate verify key",
			env: map[string]string{
				"SESSIOND_SIGNING_KEY":   testKey,
				"SESSIOND_PASSWORD_SALT": "config-test-salt-0001",
				"SESSIOND_VERIFY_KEYS":   "a=" + testKey + ",a=" + testKey,
			},
			code: CodeVerifyKeysInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil, "")
			require.Error(t, err)
			assertCode(t, err, tt.code)
		})
	}
}

func TestEphemeralKeySkipsKeyRequirement(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSIOND_EPHEMERAL_KEY", "true")
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.True(t, cfg.EphemeralKey)
	assert.Empty(t, cfg.SigningKey)
}

func TestVerifyKeysParsing(t *testing.T) {
	clearEnv(t)
	old := base64.StdEncoding.EncodeToString([]byte("old-signing-key-0123456789abcdefgh"))
	t.Setenv("SESSIOND_SIGNING_KEY", testKey)
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")
	t.Setenv("SESSIOND_KEY_ID", "k2")
	t.Setenv("SESSIOND_VERIFY_KEYS", "k1="+old+", k2="+testKey)

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.KeyIDs())
	assert.Equal(t, []byte("old-signing-key-0123456789abcdefgh"), cfg.VerifyKeys["k1"])

	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, "k2", engineCfg.Signing.KeyID)
	assert.Len(t, engineCfg.Signing.VerifyKeys, 2)
}

func TestEngineConfigAddsCurrentKeyToVerifySet(t *testing.T) {
	cfg := &Config{
		TTL:               time.Hour,
		Issuer:            "sessiond",
		Audience:          "sessiond",
		SigningMethod:     "hs256",
		SigningKey:        []byte("current-signing-key-0123456789abcd"),
		KeyID:             "new",
		VerifyKeys:        map[string][]byte{"old": []byte("old-signing-key-0123456789abcdefgh")},
		PasswordSalt:      []byte("config-test-salt-0001"),
		Argon2Memory:      65536,
		Argon2Time:        3,
		Argon2Parallelism: 2,
		MaxPasswordBytes:  1024,
		RedisPrefix:       "gs",
	}

	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg.SigningKey, engineCfg.Signing.VerifyKeys["new"])
	assert.Len(t, cfg.VerifyKeys, 1, "source map must not be mutated")
}

func TestEngineConfigRejectsCurrentKidBoundToOldKey(t *testing.T) {
	cfg := &Config{
		TTL:               time.Hour,
		Issuer:            "sessiond",
		Audience:          "sessiond",
		SigningMethod:     "hs256",
		SigningKey:        []byte("current-signing-key-0123456789abcd"),
		KeyID:             "k2",
		VerifyKeys:        map[string][]byte{"k2": []byte("old-signing-key-0123456789abcdefgh")},
		PasswordSalt:      []byte("config-test-salt-0001"),
		Argon2Memory:      65536,
		Argon2Time:        3,
		Argon2Parallelism: 2,
		MaxPasswordBytes:  1024,
		RedisPrefix:       "gs",
	}

	_, err := cfg.EngineConfig()
	require.Error(t, err)
	assertCode(t, err, CodeVerifyKeysInvalid)
}

func TestEngineConfigDerivesEd25519PublicKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := &Config{
		TTL:               time.Hour,
		Issuer:            "sessiond",
		Audience:          "sessiond",
		SigningMethod:     "ed25519",
		SigningKey:        priv,
		PasswordSalt:      []byte("config-test-salt-0001"),
		Argon2Memory:      65536,
		Argon2Time:        3,
		Argon2Parallelism: 2,
		RedisPrefix:       "gs",
	}

	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), engineCfg.Signing.PublicKey)
}

func TestEngineConfigValidationFailure(t *testing.T) {
	cfg := &Config{
		TTL:           time.Hour,
		SigningMethod: "hs256",
		SigningKey:    []byte("short"),
		PasswordSalt:  []byte("config-test-salt-0001"),
		Argon2Memory:  65536,
		Argon2Time:    3,
	}

	_, err := cfg.EngineConfig()
	require.Error(t, err)
	assertCode(t, err, CodeInvalid)
}

func TestDecodeKey(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x01, 0x02}

	got, err := DecodeKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeKey(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeKey("hex:fbff0102")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeKey("  ")
	assert.Error(t, err)
}

func TestLoadPasswordNeedsNoKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSIOND_PASSWORD_SALT", "config-test-salt-0001")
	t.Setenv("SESSIOND_ARGON2_MEMORY", "8192")
	t.Setenv("SESSIOND_ARGON2_TIME", "1")
	t.Setenv("SESSIOND_ARGON2_PARALLELISM", "1")

	cfg, err := LoadPassword(nil, "")
	require.NoError(t, err)

	hasher, err := password.NewArgon2(cfg.PasswordConfig())
	require.NoError(t, err)

	cfg.SigningKey = []byte("config-test-signing-key-0123456789")
	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	engine, err := goSession.New().WithConfig(engineCfg).Build()
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, engine.Hash("hunter2"), hasher.Hash("hunter2"))
}
