package fsm

import "testing"

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle acquire", from: StateIdle, event: EventAcquire, want: StateAcquiring},
		{name: "acquiring acquired", from: StateAcquiring, event: EventAcquired, want: StateCaptureReady},
		{name: "acquiring fail", from: StateAcquiring, event: EventFail, want: StateError},
		{name: "capture ready start", from: StateCaptureReady, event: EventStart, want: StateRecording},
		{name: "capture ready stop", from: StateCaptureReady, event: EventStop, want: StateFinishing},
		{name: "recording stop", from: StateRecording, event: EventStop, want: StateFinishing},
		{name: "recording fail", from: StateRecording, event: EventFail, want: StateError},
		{name: "finishing flushed", from: StateFinishing, event: EventFlushed, want: StateTerminated},
		{name: "terminated reset", from: StateTerminated, event: EventReset, want: StateIdle},
		{name: "error reset", from: StateError, event: EventReset, want: StateIdle},

		{name: "idle start invalid", from: StateIdle, event: EventStart, want: StateIdle, wantErr: true},
		{name: "idle fail invalid", from: StateIdle, event: EventFail, want: StateIdle, wantErr: true},
		{name: "capture ready fail invalid", from: StateCaptureReady, event: EventFail, want: StateCaptureReady, wantErr: true},
		{name: "finishing fail invalid", from: StateFinishing, event: EventFail, want: StateFinishing, wantErr: true},
		{name: "finishing stop invalid", from: StateFinishing, event: EventStop, want: StateFinishing, wantErr: true},
		{name: "terminated fail invalid", from: StateTerminated, event: EventFail, want: StateTerminated, wantErr: true},
		{name: "recording start invalid", from: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.event)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s --(%s)-->", tc.from, tc.event)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected state %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	if _, err := Transition(State("bogus"), EventStart); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
