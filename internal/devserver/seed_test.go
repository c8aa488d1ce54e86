package devserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const seedYAML = `
groups:
  - {name: default}
  - {name: linux, value: os=linux}
configs:
  - {name: c1, detail: "inputs: []"}
applied:
  - {config: c1, group: linux}
agents:
  - instance_id: a-1
    hostname: web-1
    tags: [os=linux]
    extras: {zone: us-east-1a}
  - instance_id: a-2
    hostname: win-1
`

func TestLoadSeed_Apply(t *testing.T) {
	p := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(p, []byte(seedYAML), 0o600))

	sd, err := LoadSeed(p)
	require.NoError(t, err)

	s := NewStore()
	require.NoError(t, s.ApplySeed(sd))

	applied, err := s.AppliedConfigs("linux")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, applied)

	linux, err := s.ListAgents("linux")
	require.NoError(t, err)
	require.Len(t, linux, 1)
	require.Equal(t, "web-1", linux[0].Hostname)
	require.Equal(t, []byte("us-east-1a"), linux[0].Extras["zone"])

	all, err := s.ListAgents(DefaultGroup)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestApplySeed_UnknownGroup(t *testing.T) {
	sd := &Seed{}
	sd.Applied = append(sd.Applied, struct {
		Config string `yaml:"config"`
		Group  string `yaml:"group"`
	}{"c1", "nope"})

	err := NewStore().ApplySeed(sd)
	require.Error(t, err)
	require.Contains(t, err.Error(), "seed apply c1 -> nope")
}
