package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/model"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrInvalidRequest marks malformed Configure payloads.
var ErrInvalidRequest = errors.New("invalid request")

// Configure field names.
const (
	FieldMissileSpeed = "missileSpeed"
	FieldTargetSpeed  = "targetSpeed"
	FieldScenario     = "scenario"
	FieldTarget       = "target"
	FieldEnvironment  = "environment"
	FieldIllumination = "illumination"
)

// SnapshotToStruct converts a snapshot into its wire form. Field names
// follow the snapshot's JSON tags.
func SnapshotToStruct(snap core.Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// SnapshotFromStruct is the inverse of SnapshotToStruct.
func SnapshotFromStruct(s *structpb.Struct) (core.Snapshot, error) {
	var snap core.Snapshot
	if s == nil {
		return snap, fmt.Errorf("%w: empty snapshot", ErrInvalidRequest)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// UpdateFromStruct parses a Configure payload. Absent fields are left
// unchanged; unknown fields and wrong types are rejected.
func UpdateFromStruct(s *structpb.Struct) (session.Update, error) {
	var u session.Update
	if s == nil {
		return u, nil
	}
	for key, v := range s.GetFields() {
		switch key {
		case FieldMissileSpeed:
			f, err := numberField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			u.MissileSpeed = &f
		case FieldTargetSpeed:
			f, err := numberField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			u.TargetSpeed = &f
		case FieldIllumination:
			f, err := numberField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			u.Illumination = &f
		case FieldScenario:
			str, err := stringField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			kind := model.ScenarioKind(str)
			u.Scenario = &kind
		case FieldTarget:
			str, err := stringField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			id := model.TargetID(str)
			u.Target = &id
		case FieldEnvironment:
			str, err := stringField(key, v)
			if err != nil {
				return session.Update{}, err
			}
			id := model.EnvironmentID(str)
			u.Environment = &id
		default:
			return session.Update{}, fmt.Errorf("%w: unknown field %q", ErrInvalidRequest, key)
		}
	}
	return u, nil
}

// UpdateToStruct builds a Configure payload from the set fields of u.
func UpdateToStruct(u session.Update) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	if u.MissileSpeed != nil {
		fields[FieldMissileSpeed] = structpb.NewNumberValue(*u.MissileSpeed)
	}
	if u.TargetSpeed != nil {
		fields[FieldTargetSpeed] = structpb.NewNumberValue(*u.TargetSpeed)
	}
	if u.Illumination != nil {
		fields[FieldIllumination] = structpb.NewNumberValue(*u.Illumination)
	}
	if u.Scenario != nil {
		fields[FieldScenario] = structpb.NewStringValue(string(*u.Scenario))
	}
	if u.Target != nil {
		fields[FieldTarget] = structpb.NewStringValue(string(*u.Target))
	}
	if u.Environment != nil {
		fields[FieldEnvironment] = structpb.NewStringValue(string(*u.Environment))
	}
	return &structpb.Struct{Fields: fields}
}

func numberField(key string, v *structpb.Value) (float64, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
	if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidRequest, key)
	}
	return n.NumberValue, nil
}

func stringField(key string, v *structpb.Value) (string, error) {
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
	return s.StringValue, nil
}
