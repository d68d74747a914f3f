package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// decodeFilterPatch reads a partial FilterCriteria. Keys that are absent are
// left unchanged; an explicit null clears the criterion.
func decodeFilterPatch(r io.Reader) (domain.FilterPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return domain.FilterPatch{}, errors.New("invalid JSON body")
	}

	var patch domain.FilterPatch
	var err error
	if raw, ok := fields["magnitudeMin"]; ok {
		if patch.MagnitudeMin, err = decodeBound("magnitudeMin", raw); err != nil {
			return domain.FilterPatch{}, err
		}
	}
	if raw, ok := fields["magnitudeMax"]; ok {
		if patch.MagnitudeMax, err = decodeBound("magnitudeMax", raw); err != nil {
			return domain.FilterPatch{}, err
		}
	}
	if raw, ok := fields["locationText"]; ok {
		var text *string
		if err := json.Unmarshal(raw, &text); err != nil {
			return domain.FilterPatch{}, fmt.Errorf("locationText must be a string or null")
		}
		v := ""
		if text != nil {
			v = *text
		}
		patch.LocationText = domain.Some(v)
	}
	return patch, nil
}

func decodeBound(name string, raw json.RawMessage) (domain.Optional[*float64], error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Optional[*float64]{}, fmt.Errorf("%s must be a number or null", name)
	}
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return domain.Optional[*float64]{}, fmt.Errorf("%s must be finite", name)
	}
	return domain.Some(v), nil
}
