package facilitor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/facilitor"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/service/event"
	qmem "github.com/viant/facilitor/service/messaging/memory"
)

const releaseYAML = `
name: release
pipeline:
  build:
    obtain: sync
  verify:
    skip: ${channel == 'nightly'}
    obtain: sync
  deploy:
    obtain:
      type: sync
      parameters:
        restraintName: deploy-slot
        resourceUnit: prod
`

func TestService_EndToEnd(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	srv := facilitor.New(
		facilitor.WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
			mu.Lock()
			executed = append(executed, anExecution.NodeID)
			mu.Unlock()
			return nil
		}))

	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	require.NoError(t, runtime.UpsertRestraint(ctx,
		&restraint.Restraint{AccountID: "acme", Name: "deploy-slot", Capacity: 1}))

	aPlan, err := runtime.DecodeYAMLPlan([]byte(releaseYAML))
	require.NoError(t, err)

	planExecution, err := runtime.StartPlan(ctx, aPlan, "acme", map[string]string{"channel": "nightly"})
	require.NoError(t, err)

	planExecution, err = runtime.WaitForPlan(ctx, planExecution.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.PlanStateSucceeded, planExecution.State)

	mu.Lock()
	assert.Equal(t, []string{"build", "deploy"}, executed)
	mu.Unlock()

	report := runtime.Progress(planExecution.ID)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, report.Total, report.Finished())
	assert.Equal(t, execution.PlanStateSucceeded, report.PlanState)
}

func TestService_LoadPlan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(`
pipeline:
  ping:
    obtain: sync
`), 0644))

	srv := facilitor.New(facilitor.WithPlanBaseURL(dir))
	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	aPlan, err := runtime.LoadPlan(ctx, "smoke")
	require.NoError(t, err)
	require.NotNil(t, aPlan)

	planExecution, err := runtime.StartPlan(ctx, aPlan, "acme", nil)
	require.NoError(t, err)
	planExecution, err = runtime.WaitForPlan(ctx, planExecution.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.PlanStateSucceeded, planExecution.State)
}

func TestService_FileBackedStores(t *testing.T) {
	config := facilitor.DefaultConfig()
	config.Queue = facilitor.BackendConfig{Vendor: facilitor.VendorFS, BasePath: filepath.Join(t.TempDir(), "queue")}
	config.Store = facilitor.BackendConfig{Vendor: facilitor.VendorFS, BasePath: filepath.Join(t.TempDir(), "executions")}

	srv := facilitor.New(facilitor.WithConfig(config))
	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	aPlan, err := runtime.DecodeYAMLPlan([]byte(`
name: durable
pipeline:
  ping:
    obtain: sync
`))
	require.NoError(t, err)

	planExecution, err := runtime.StartPlan(ctx, aPlan, "acme", nil)
	require.NoError(t, err)
	planExecution, err = runtime.WaitForPlan(ctx, planExecution.ID, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.PlanStateSucceeded, planExecution.State)

	// execution records persisted on disk
	entries, err := os.ReadDir(config.Store.BasePath)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestService_FSQueueRequiresBasePath(t *testing.T) {
	config := facilitor.DefaultConfig()
	config.Queue = facilitor.BackendConfig{Vendor: facilitor.VendorFS}

	srv := facilitor.New(facilitor.WithConfig(config))
	err := srv.Runtime().Start(context.Background())
	assert.ErrorContains(t, err, "basePath")
}

func TestService_EventQueueDelivery(t *testing.T) {
	queue := qmem.NewQueue[event.Event[any]](qmem.DefaultConfig())
	srv := facilitor.New(facilitor.WithEventQueue(queue))
	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	var mu sync.Mutex
	seen := map[string]bool{}
	listener, err := runtime.SubscribeEvents(func(anEvent *event.Event[any]) {
		mu.Lock()
		seen[anEvent.Context.EventType] = true
		mu.Unlock()
	})
	require.NoError(t, err)
	defer listener.Stop()

	aPlan, err := runtime.DecodeYAMLPlan([]byte(`
name: observed
pipeline:
  ping:
    obtain: sync
`))
	require.NoError(t, err)
	planExecution, err := runtime.StartPlan(ctx, aPlan, "acme", nil)
	require.NoError(t, err)
	_, err = runtime.WaitForPlan(ctx, planExecution.ID, 5*time.Second)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		delivered := seen[event.TypeNodeStart] && seen[event.TypePlanStatusUpdate]
		mu.Unlock()
		if delivered {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("relayed events were not delivered")
}

func TestService_InterruptAbortsPendingNode(t *testing.T) {
	release := make(chan struct{})
	srv := facilitor.New(
		facilitor.WithHandler(func(_ context.Context, anExecution *execution.NodeExecution, _ *plan.Node) error {
			if anExecution.NodeID == "first" {
				<-release
			}
			return nil
		}))
	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Shutdown(ctx)

	aPlan, err := runtime.DecodeYAMLPlan([]byte(`
name: two-step
pipeline:
  first:
    obtain: sync
  second:
    obtain: sync
`))
	require.NoError(t, err)

	planExecution, err := runtime.StartPlan(ctx, aPlan, "acme", nil)
	require.NoError(t, err)

	// abort everything still pending, then let the first node finish
	_, err = runtime.RaiseInterrupt(ctx, "abort", planExecution.ID, "")
	require.NoError(t, err)
	close(release)

	planExecution, err = runtime.WaitForPlan(ctx, planExecution.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.PlanStateFailed, planExecution.State)
}
