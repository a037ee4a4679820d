package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundTimer_Fires(t *testing.T) {
	var fired atomic.Int32
	var rt roundTimer
	rt.Arm(5*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
}

func TestRoundTimer_StopPreventsFiring(t *testing.T) {
	var fired atomic.Int32
	var rt roundTimer
	rt.Arm(10*time.Millisecond, func() { fired.Add(1) })
	rt.Stop()

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestRoundTimer_RearmSupersedesOldTimer(t *testing.T) {
	var old, fresh atomic.Int32
	var rt roundTimer
	rt.Arm(5*time.Millisecond, func() { old.Add(1) })
	rt.Arm(15*time.Millisecond, func() { fresh.Add(1) })

	require.Eventually(t, func() bool { return fresh.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, int32(0), old.Load())
}

func TestRoundTimer_StopWithoutArm(t *testing.T) {
	var rt roundTimer
	rt.Stop()
}
