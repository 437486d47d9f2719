package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidMode(t *testing.T) {
	assert.True(t, validMode("serve"))
	assert.True(t, validMode("detect"))
	assert.False(t, validMode(""))
	assert.False(t, validMode("Detect"))
	assert.False(t, validMode("replay"))
}
