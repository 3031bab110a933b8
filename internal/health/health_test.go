package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("chain", func(ctx context.Context) Status {
		return Status{Name: "chain", Healthy: true}
	})
	r.Register("txservice", func(ctx context.Context) Status {
		return Status{Name: "txservice", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, "chain", statuses[0].Name)
}

func TestCheckAllOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("chain", func(ctx context.Context) Status {
		return Status{Name: "chain", Healthy: true}
	})
	r.Register("db", func(ctx context.Context) Status {
		return Status{Name: "db", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "connection refused", statuses[1].Detail)
}

func TestCheckContextHasDeadline(t *testing.T) {
	r := NewRegistry()
	r.Register("chain", func(ctx context.Context) Status {
		if _, ok := ctx.Deadline(); !ok {
			return Fail("chain", context.DeadlineExceeded)
		}
		return OK("chain")
	})

	healthy, _ := r.CheckAll(context.Background())
	assert.True(t, healthy)
}

func TestStatusHelpers(t *testing.T) {
	ok := OK("database")
	assert.True(t, ok.Healthy)
	assert.Empty(t, ok.Detail)

	fail := Fail("database", context.Canceled)
	assert.False(t, fail.Healthy)
	assert.Equal(t, "database", fail.Name)
	assert.Equal(t, context.Canceled.Error(), fail.Detail)
}

func TestEmptyRegistryIsHealthy(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}
