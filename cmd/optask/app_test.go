package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/config"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		Region: "eu-west-1",
		Deployments: []config.Deployment{
			{Name: "alpha", SourceDir: "./alpha"},
			{Name: "beta", SourceDir: "./beta"},
		},
	}
	require.NoError(t, cfg.Validate())
	return &app{cfg: cfg}
}

func TestSelectDeployments(t *testing.T) {
	a := testApp(t)

	names, err := a.selectDeployments([]string{"alpha"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, names)

	names, err = a.selectDeployments(nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names, "--all covers every deployment in order")
}

func TestSelectDeployments_Rejections(t *testing.T) {
	a := testApp(t)

	_, err := a.selectDeployments(nil, false)
	assert.Error(t, err, "a name or --all is required")

	_, err = a.selectDeployments([]string{"alpha"}, true)
	assert.Error(t, err, "--all excludes a positional name")

	_, err = a.selectDeployments([]string{"nope"}, false)
	assert.Error(t, err, "unknown deployments fail before any remote call")
}
