package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/userdash/jobs"
)

func TestTriggerRejectsUnknownInput(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "mail:send")
	assert.ErrorContains(t, err, "unsupported job")

	_, err = c.Trigger(context.Background(), jobs.TaskDatasetsWarm, "photos")
	assert.ErrorContains(t, err, "unknown dataset")
}

func TestNewJobsCLIRequiresAddr(t *testing.T) {
	_, err := NewJobsCLI("")
	assert.Error(t, err)
}
