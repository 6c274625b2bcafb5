package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, true)

	logger.Info("cloned", "branch", "fix/issue-7-ai")

	out := buf.String()
	assert.Contains(t, out, `"msg":"cloned"`)
	assert.Contains(t, out, `"branch":"fix/issue-7-ai"`)
}

func TestNewRespectsVerbose(t *testing.T) {
	var quiet, loud bytes.Buffer

	New(&quiet, false, true).Debug("hidden")
	New(&loud, true, true).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "shown")
}

func TestContextCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), New(&buf, false, true))
	ctx = With(ctx, "issue", 7)

	clog.FromContext(ctx).Info("fetching")

	out := buf.String()
	assert.Contains(t, out, "fetching")
	assert.Contains(t, out, `"issue":7`)
}
