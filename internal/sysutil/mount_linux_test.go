//go:build linux

package sysutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameDevice(t *testing.T) {
	dir := t.TempDir()
	same, err := SameDevice(dir, dir)
	require.NoError(t, err)
	assert.True(t, same)

	_, err = SameDevice(dir, dir+"/missing")
	assert.Error(t, err)
}

func TestMountPoint(t *testing.T) {
	assert.NotEmpty(t, MountPoint(t.TempDir()))
}

func TestWithinMount(t *testing.T) {
	assert.True(t, withinMount("/home/u/Downloads", "/"))
	assert.True(t, withinMount("/home/u/Downloads", "/home"))
	assert.True(t, withinMount("/home", "/home"))
	assert.False(t, withinMount("/homeland/x", "/home"))
	assert.False(t, withinMount("relative", "/"))
}
