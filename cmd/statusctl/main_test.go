package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// demoEnv selects the in-memory store with traffic disabled.
func demoEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BAIDU_MAP_AK", "")
	t.Setenv("TRAFFIC_ENABLED", "")
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "red with long wait",
			args: []string{"score", "--severity", "red", "--wait", "70"},
			want: []string{"strictness: 10/10", "status:     RED"},
		},
		{
			name: "red traffic escalates color only",
			args: []string{"score", "--severity", "green", "--wait", "5", "--traffic", "RED"},
			want: []string{"strictness: 4/10", "status:     RED"},
		},
		{
			name: "yellow",
			args: []string{"score", "--severity", "Yellow", "--wait", "31"},
			want: []string{"strictness: 7/10", "status:     YELLOW (moderate)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestScore_InvalidInput(t *testing.T) {
	_, err := execute(t, "score", "--severity", "blue")
	require.ErrorIs(t, err, domain.ErrInvalidReport)

	_, err = execute(t, "score", "--severity", "red", "--wait", "-1")
	require.ErrorIs(t, err, domain.ErrInvalidReport)

	_, err = execute(t, "score")
	require.Error(t, err)
}

func TestDataset(t *testing.T) {
	out, err := execute(t, "dataset")
	require.NoError(t, err)

	assert.Contains(t, out, "offline dataset OK: 3 checkpoints, 5 blacklist items")
	assert.Contains(t, out, "Haikou Meilan Airport")
	assert.Contains(t, out, "Camera drone")
}

func TestSnapshot_DemoStore(t *testing.T) {
	demoEnv(t)

	out, err := execute(t, "snapshot", "--json")
	require.NoError(t, err)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.False(t, snap.Offline)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Checkpoints, 3)
	// Severity-first order puts the RED airport ahead of the GREEN port.
	assert.Equal(t, domain.SeverityRed, snap.Checkpoints[0].Status)
	assert.Equal(t, "3", snap.Checkpoints[2].ID)
	require.Len(t, snap.Blacklist, 5)
	assert.Equal(t, 1, snap.Blacklist[0].Rank)
}

func TestSnapshot_Table(t *testing.T) {
	demoEnv(t)

	out, err := execute(t, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "Strictness")
	assert.Contains(t, out, "Xinhai Port")
	assert.NotContains(t, out, "OFFLINE")
}
