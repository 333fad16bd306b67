package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("", nil)
	assert.EqualError(t, err, "DATABASE_URL is required")
}
