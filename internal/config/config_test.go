package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresTLSOrInsecure(t *testing.T) {
	c := Config{StorePath: "/tmp/store", Difficulty: 10}
	assert.ErrorIs(t, c.Validate(), ErrTLSConfigIncomplete)
}

func TestValidateAcceptsCompleteTLSGroup(t *testing.T) {
	c := Config{
		StorePath: "/tmp/store", Difficulty: 10,
		CertPath: "a", KeyPath: "b", TestatorCAPath: "c",
	}
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsPartialTLSGroup(t *testing.T) {
	c := Config{StorePath: "/tmp/store", Difficulty: 10, CertPath: "a"}
	assert.ErrorIs(t, c.Validate(), ErrTLSConfigIncomplete)
}

func TestValidateAcceptsInsecure(t *testing.T) {
	c := Config{StorePath: "/tmp/store", Difficulty: 10, Insecure: true}
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsTLSAndInsecureTogether(t *testing.T) {
	c := Config{
		StorePath: "/tmp/store", Difficulty: 10, Insecure: true,
		CertPath: "a", KeyPath: "b", TestatorCAPath: "c",
	}
	assert.ErrorIs(t, c.Validate(), ErrTLSAndInsecureConflict)
}

func TestApplyDefaultsFillsPorts(t *testing.T) {
	c := Config{}.ApplyDefaults()
	assert.Equal(t, DefaultBeneficiaryPort, c.BeneficiaryPort)
	assert.Equal(t, DefaultTestatorPort, c.TestatorPort)
}

func TestMergePrefersCLIOverOverlay(t *testing.T) {
	cli := Config{StorePath: "/cli/path", TestatorPort: 9000}
	overlay := Config{StorePath: "/overlay/path", Difficulty: 42, BeneficiaryPort: 8000}

	merged := Merge(cli, overlay)
	assert.Equal(t, "/cli/path", merged.StorePath)
	assert.Equal(t, uint64(42), merged.Difficulty)
	assert.Equal(t, 9000, merged.TestatorPort)
	assert.Equal(t, 8000, merged.BeneficiaryPort)
}

func TestLoadOverlayParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custodian.toml")
	content := `
store_path = "/var/lib/custodian"
difficulty = 1000000
insecure = true
beneficiary_api_port = 5050
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	o, err := LoadOverlay(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/custodian", o.StorePath)
	assert.Equal(t, uint64(1000000), o.Difficulty)
	assert.True(t, o.Insecure)
	assert.Equal(t, 5050, o.BeneficiaryPort)
}
