package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Info(context.Background(), "should not appear")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelInfo, Format: "text", Output: &buf}).WithComponent("cache")

	logger.Info(context.Background(), "hit")
	assert.True(t, strings.Contains(buf.String(), "component=cache"))
}

func TestLogger_With_AccumulatesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelInfo, Format: "text", Output: &buf}).With("target", "//pkg:lib")

	logger.Info(context.Background(), "building")
	assert.Contains(t, buf.String(), "target=//pkg:lib")
}
