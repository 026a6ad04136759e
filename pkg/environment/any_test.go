package environment

import (
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func testStates(t *testing.T) map[Phase]AnyState {
	t.Helper()
	created := testCreated(t)
	ip := netip.MustParseAddr("10.0.0.42")

	provisioned := created.StartProvisioning().Provisioned(ip)
	released := provisioned.StartConfiguring().Configured().StartReleasing().Released()

	return map[Phase]AnyState{
		PhaseCreated:      created.IntoAny(),
		PhaseProvisioning: created.StartProvisioning().IntoAny(),
		PhaseProvisioned:  provisioned.IntoAny(),
		PhaseConfiguring:  provisioned.StartConfiguring().IntoAny(),
		PhaseConfigured:   provisioned.StartConfiguring().Configured().IntoAny(),
		PhaseReleasing:    provisioned.StartConfiguring().Configured().StartReleasing().IntoAny(),
		PhaseReleased:     released.IntoAny(),
		PhaseRunning:      released.Run().IntoAny(),
		PhaseDestroyed:    released.Destroy().IntoAny(),

		PhaseProvisionFailed: created.StartProvisioning().Failed(testFailure(ProvisionStepInfraApply)).IntoAny(),
		PhaseConfigureFailed: provisioned.StartConfiguring().Failed(testFailure(ConfigureStepInstallRuntime)).IntoAny(),
		PhaseReleaseFailed:   provisioned.StartConfiguring().Configured().StartReleasing().Failed(testFailure(ReleaseStepUploadArtifacts)).IntoAny(),
		PhaseRunFailed:       released.RunFailed(testFailure(RunStepStartServices)).IntoAny(),
	}
}

func TestAnyStateJSONRoundTrip(t *testing.T) {
	for phase, state := range testStates(t) {
		data, err := json.Marshal(state)
		if err != nil {
			t.Fatalf("%s: marshal: %v", phase, err)
		}

		var restored AnyState
		if err := json.Unmarshal(data, &restored); err != nil {
			t.Fatalf("%s: unmarshal: %v", phase, err)
		}

		if restored.Phase() != phase {
			t.Errorf("%s: restored phase = %q", phase, restored.Phase())
		}
		if restored.Name() != state.Name() {
			t.Errorf("%s: restored name = %q", phase, restored.Name())
		}
		origIP, origOK := state.InstanceIP()
		gotIP, gotOK := restored.InstanceIP()
		if origOK != gotOK || origIP != gotIP {
			t.Errorf("%s: restored IP = %v, %v; want %v, %v", phase, gotIP, gotOK, origIP, origOK)
		}

		origFC, origHas := state.Failure()
		gotFC, gotHas := restored.Failure()
		if origHas != gotHas {
			t.Fatalf("%s: restored failure presence = %v, want %v", phase, gotHas, origHas)
		}
		if origHas && gotFC != origFC {
			t.Errorf("%s: restored failure = %+v, want %+v", phase, gotFC, origFC)
		}
	}
}

func TestTypedExtraction(t *testing.T) {
	states := testStates(t)

	if _, err := states[PhaseCreated].ToCreated(); err != nil {
		t.Errorf("ToCreated on created state: %v", err)
	}

	failed, err := states[PhaseProvisionFailed].ToProvisionFailed()
	if err != nil {
		t.Fatalf("ToProvisionFailed: %v", err)
	}
	if failed.Failure().FailedStep != ProvisionStepInfraApply {
		t.Errorf("typed failed step = %q", failed.Failure().FailedStep)
	}

	// Extraction with the wrong phase must identify both phases.
	_, err = states[PhaseRunning].ToCreated()
	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected *PhaseError, got %v", err)
	}
	if phaseErr.Expected != PhaseCreated || phaseErr.Actual != PhaseRunning {
		t.Errorf("phase error = %+v", phaseErr)
	}
}

func TestAnyStateDestroy(t *testing.T) {
	states := testStates(t)

	destroyed, err := states[PhaseRunning].Destroy()
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if destroyed.IntoAny().Phase() != PhaseDestroyed {
		t.Errorf("phase = %q", destroyed.IntoAny().Phase())
	}

	if _, err := states[PhaseDestroyed].Destroy(); err == nil {
		t.Error("destroying a destroyed environment should fail")
	}
}

func TestUnmarshalRejectsInvalidStates(t *testing.T) {
	states := testStates(t)

	base, err := json.Marshal(states[PhaseRunning])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	failedBase, err := json.Marshal(states[PhaseProvisionFailed])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(m map[string]json.RawMessage)
		source  []byte
		wantErr string
	}{
		{
			name:    "unknown phase",
			source:  base,
			mutate:  func(m map[string]json.RawMessage) { m["phase"] = json.RawMessage(`"exploded"`) },
			wantErr: "unknown environment phase",
		},
		{
			name:    "failure phase without failure context",
			source:  failedBase,
			mutate:  func(m map[string]json.RawMessage) { delete(m, "failure_context") },
			wantErr: "requires a failure context",
		},
		{
			name:   "success phase with failure context",
			source: base,
			mutate: func(m map[string]json.RawMessage) {
				m["failure_context"] = json.RawMessage(`{"failed_step":"infra_apply","error_kind":"internal","error_summary":"x","execution_started_at":"2026-01-02T03:10:00Z","failed_at":"2026-01-02T03:10:03Z","execution_duration":3000000000,"trace_id":"t"}`)
			},
			wantErr: "must not carry a failure context",
		},
		{
			name:   "failure step from the wrong command",
			source: failedBase,
			mutate: func(m map[string]json.RawMessage) {
				var fc map[string]json.RawMessage
				if err := json.Unmarshal(m["failure_context"], &fc); err != nil {
					t.Fatalf("unmarshal failure context: %v", err)
				}
				fc["failed_step"] = json.RawMessage(`"health_check"`)
				raw, err := json.Marshal(fc)
				if err != nil {
					t.Fatalf("marshal failure context: %v", err)
				}
				m["failure_context"] = raw
			},
			wantErr: "unknown provision step",
		},
		{
			name:   "tampered instance name",
			source: base,
			mutate: func(m map[string]json.RawMessage) {
				var ui map[string]json.RawMessage
				if err := json.Unmarshal(m["user_inputs"], &ui); err != nil {
					t.Fatalf("unmarshal user inputs: %v", err)
				}
				ui["instance_name"] = json.RawMessage(`"envforge-vm-other"`)
				raw, err := json.Marshal(ui)
				if err != nil {
					t.Fatalf("marshal user inputs: %v", err)
				}
				m["user_inputs"] = raw
			},
			wantErr: "does not match environment",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(tc.source, &m); err != nil {
				t.Fatalf("unmarshal base: %v", err)
			}
			tc.mutate(m)
			data, err := json.Marshal(m)
			if err != nil {
				t.Fatalf("marshal mutated: %v", err)
			}

			var state AnyState
			err = json.Unmarshal(data, &state)
			if err == nil {
				t.Fatal("expected unmarshal to fail")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}
