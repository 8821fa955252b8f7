package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLock struct {
	acquired bool
	held     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired = true
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	t.Parallel()

	failing := &testJob{name: "fail", err: errors.New("boom")}
	succeeding := &testJob{name: "success"}
	registry := NewRegistry(failing, succeeding)
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, succeeding.runs)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &testJob{name: "skipped"}
	lock := &fakeLock{held: true}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.False(t, lock.acquired)
}

func TestServiceRunCycleReleasesLock(t *testing.T) {
	t.Parallel()

	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(&testJob{name: "noop"}),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.True(t, lock.acquired)
	assert.False(t, lock.held)
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)

	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil, &testJob{name: "only"})
	registry.Register(nil)
	require.Len(t, registry.Jobs(), 1)
	assert.Equal(t, "only", registry.Jobs()[0].Name())
}
