package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSignals/internal/config"
	"NewsSignals/internal/jobs"
)

type fakeDriver struct {
	jobs     map[string]func(time.Time)
	started  bool
	stopped  bool
	schedErr error
}

func (f *fakeDriver) Schedule(spec string, job func(time.Time)) error {
	if f.schedErr != nil {
		return f.schedErr
	}
	if f.jobs == nil {
		f.jobs = map[string]func(time.Time){}
	}
	f.jobs[spec] = job
	return nil
}

func (f *fakeDriver) Start(context.Context) error {
	f.started = true
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func TestSchedulerRunsJobsThroughCoordinator(t *testing.T) {
	coord := jobs.NewCoordinator(nil, nil)
	notifier := &recordingNotifier{}
	clusterData := clusterStore()
	driver := &fakeDriver{}

	s := NewScheduler(SchedulerDeps{
		Driver:     driver,
		Jobs:       coord,
		Anomaly:    newAnomalyService(spikeStore(), &staticIndex{idx: testIndex()}, notifier, nil),
		Clustering: newClusteringService(clusterData, &countingSummarizer{}, nil, coord),
		Config:     config.SchedulerConfig{AnomalyCron: "*/30 * * * *", ClusteringCron: "0 */2 * * *"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.True(t, driver.started)
	require.Len(t, driver.jobs, 2)

	// Runs outlive the context that started the scheduler.
	cancel()

	driver.jobs["*/30 * * * *"](testNow)
	assert.Len(t, notifier.digests, 1)

	driver.jobs["0 */2 * * *"](testNow)
	assert.Equal(t, 2, clusterData.snapshotCount())

	st, err := coord.Status(jobs.KindClustering)
	require.NoError(t, err)
	assert.NotNil(t, st.LastFinished)
	assert.Empty(t, st.LastError)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerSkipsOverlappingRun(t *testing.T) {
	coord := jobs.NewCoordinator(nil, nil)
	clusterData := clusterStore()
	driver := &fakeDriver{}

	s := NewScheduler(SchedulerDeps{
		Driver:     driver,
		Jobs:       coord,
		Clustering: newClusteringService(clusterData, nil, nil, coord),
		Config:     config.SchedulerConfig{ClusteringCron: "@hourly"},
	})
	require.NoError(t, s.Start(context.Background()))
	require.Len(t, driver.jobs, 1)

	release := make(chan struct{})
	_, err := coord.Start(context.Background(), jobs.KindClustering, func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	driver.jobs["@hourly"](testNow)
	assert.Zero(t, clusterData.snapshotCount())

	close(release)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerScheduleError(t *testing.T) {
	s := NewScheduler(SchedulerDeps{
		Driver:  &fakeDriver{schedErr: errors.New("bad cron expression")},
		Jobs:    jobs.NewCoordinator(nil, nil),
		Anomaly: newAnomalyService(newMemStore(), &staticIndex{idx: testIndex()}, nil, nil),
		Config:  config.SchedulerConfig{AnomalyCron: "nonsense"},
	})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad cron expression")
}
