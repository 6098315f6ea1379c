package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

type stubTransport struct{ mock.Mock }

func (s *stubTransport) Control(zoneID, control string) error { return s.Called(zoneID, control).Error(0) }
func (s *stubTransport) Mute(outputID, how string) error      { return s.Called(outputID, how).Error(0) }
func (s *stubTransport) PauseAll() error                      { return s.Called().Error(0) }

var _ Transport = (*stubTransport)(nil)

func livingRoom() zone.Zone {
	return zone.Zone{
		ID:          "z2",
		DisplayName: "Living Room",
		Outputs:     []zone.Output{{ID: "o2"}, {ID: "o3"}},
	}
}

func TestExecuteZoneCommands(t *testing.T) {
	for _, cmd := range []string{"play", "pause", "next", "previous", "playpause"} {
		t.Run(cmd, func(t *testing.T) {
			tr := &stubTransport{}
			tr.On("Control", "z2", cmd).Return(nil)

			d := NewDispatcher(tr, nil)
			assert.Equal(t, Executed, d.Execute(livingRoom(), cmd))

			tr.AssertExpectations(t)
			tr.AssertNotCalled(t, "Mute", mock.Anything, mock.Anything)
			tr.AssertNotCalled(t, "PauseAll")
		})
	}
}

func TestExecuteMute(t *testing.T) {
	for _, cmd := range []string{"mute", "unmute"} {
		t.Run(cmd, func(t *testing.T) {
			tr := &stubTransport{}
			tr.On("Mute", "o2", cmd).Return(nil)

			d := NewDispatcher(tr, nil)
			assert.Equal(t, Executed, d.Execute(livingRoom(), cmd))
			tr.AssertExpectations(t)
		})
	}
}

func TestExecuteMuteWithoutOutputs(t *testing.T) {
	tr := &stubTransport{}
	d := NewDispatcher(tr, nil)

	z := zone.Zone{ID: "z9", DisplayName: "Empty"}
	res := d.Execute(z, "mute")

	assert.Equal(t, InvalidTarget, res)
	assert.ErrorIs(t, res.Err(), ErrInvalidTarget)
	tr.AssertNotCalled(t, "Mute", mock.Anything, mock.Anything)
}

func TestExecutePauseAll(t *testing.T) {
	tr := &stubTransport{}
	tr.On("PauseAll").Return(nil)

	d := NewDispatcher(tr, nil)
	// Zone is irrelevant, even one without outputs
	assert.Equal(t, Executed, d.Execute(zone.Zone{ID: "z9"}, "pause_all"))
	tr.AssertExpectations(t)
}

func TestExecuteUnsupported(t *testing.T) {
	tests := []string{"unknown_cmd", "", "Play", "PLAYPAUSE", "stop", "pause all"}

	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			tr := &stubTransport{}
			d := NewDispatcher(tr, nil)

			res := d.Execute(livingRoom(), cmd)
			assert.Equal(t, Unsupported, res)
			assert.ErrorIs(t, res.Err(), ErrUnsupported)
			assert.Empty(t, tr.Calls)
		})
	}
}

func TestExecuteSendFailureStillExecuted(t *testing.T) {
	tr := &stubTransport{}
	tr.On("Control", "z2", "play").Return(errors.New("not connected"))

	d := NewDispatcher(tr, nil)
	res := d.Execute(livingRoom(), "play")

	assert.Equal(t, Executed, res)
	assert.NoError(t, res.Err())
}

func TestCommands(t *testing.T) {
	assert.Equal(t, []string{
		"mute", "next", "pause", "pause_all", "play", "playpause", "previous", "unmute",
	}, Commands())

	assert.True(t, IsSupported("playpause"))
	assert.False(t, IsSupported("stop"))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "executed", Executed.String())
	assert.Equal(t, "unsupported", Unsupported.String())
	assert.Equal(t, "invalid_target", InvalidTarget.String())
	assert.Equal(t, "unknown", Result(42).String())
}
