package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Topic shape constants. A single wildcard subscription on SubscribePattern
// captures traffic for every sensor.
const (
	topicRoot        = "acuaponia"
	topicSegSensors  = "sensors"
	topicSegData     = "data"
	SubscribePattern = topicRoot + "/" + topicSegSensors + "/+/" + topicSegData
)

// TopicFor returns the canonical data topic for a hardware reference.
func TopicFor(hardwareRef string) string {
	return topicRoot + "/" + topicSegSensors + "/" + hardwareRef + "/" + topicSegData
}

// ParseTopic extracts the hardware reference from an incoming topic.
// The topic must have exactly four segments with the literal root,
// "sensors", and "data" segments in place; anything else is an invalid
// error the subscriber loop drops with a debug log.
func ParseTopic(topic string) (string, error) {
	segments := strings.Split(topic, "/")
	if len(segments) != 4 ||
		segments[0] != topicRoot ||
		segments[1] != topicSegSensors ||
		segments[3] != topicSegData ||
		segments[2] == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidTopic, "ingest", "ParseTopic", topic)
	}
	return segments[2], nil
}

// Observation is one (kind, value) pair extracted from a telemetry payload.
type Observation struct {
	Kind  types.MeasurementKind
	Value float64
}

// DecodePayload parses a telemetry record: a JSON object with one numeric
// value per measurement-kind key and an optional RFC3339 "timestamp" field
// that defaults to receipt time. Unrecognized keys are ignored; recognized
// keys with non-numeric values are skipped and reported in warnings. A
// payload yielding no observations is invalid.
func DecodePayload(payload []byte, receivedAt time.Time) ([]Observation, time.Time, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, time.Time{}, nil, errors.WrapInvalid(errors.ErrInvalidPayload, "ingest", "DecodePayload", "unmarshal")
	}

	ts := receivedAt
	if rawTS, ok := raw["timestamp"]; ok {
		var str string
		if err := json.Unmarshal(rawTS, &str); err == nil {
			if parsed, err := time.Parse(time.RFC3339, str); err == nil {
				ts = parsed
			}
		}
	}

	var (
		observations []Observation
		warnings     []string
	)
	for key, rawVal := range raw {
		kind, ok := types.ParseKind(key)
		if !ok {
			continue
		}
		var value float64
		if err := json.Unmarshal(rawVal, &value); err != nil {
			warnings = append(warnings, "non-numeric value for "+key)
			continue
		}
		observations = append(observations, Observation{Kind: kind, Value: value})
	}

	if len(observations) == 0 {
		return nil, ts, warnings, errors.WrapInvalid(errors.ErrInvalidPayload, "ingest", "DecodePayload", "no recognized measurements")
	}
	return observations, ts, warnings, nil
}
