package building

import (
	"math"

	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/mapping"
)

// Heights are the storey counts of a feature and the derived heights in
// meters.
type Heights struct {
	Ground       float64
	Underground  float64
	StoreyHeight float64

	Building          float64
	UndergroundHeight float64
}

// DeriveHeights reads the storey attributes named by b from attrs.
// Number attributes are used directly, strings are parsed.
func DeriveHeights(attrs *element.Attributes, b *mapping.Batch) (Heights, error) {
	var h Heights
	var err error
	if h.Ground, err = storeyValue(attrs, b.GroundStorey); err != nil {
		return h, err
	}
	if h.Underground, err = storeyValue(attrs, b.UndergroundStorey); err != nil {
		return h, err
	}
	if b.StoreyHeight.Key != "" {
		if h.StoreyHeight, err = storeyValue(attrs, b.StoreyHeight.Key); err != nil {
			return h, err
		}
	} else {
		h.StoreyHeight = b.StoreyHeight.Value
	}

	h.Building = (h.Ground + h.Underground) * h.StoreyHeight
	h.UndergroundHeight = h.Underground * h.StoreyHeight
	return h, nil
}

func storeyValue(attrs *element.Attributes, key string) (float64, error) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, &MissingAttributeError{Key: key}
	}
	f, ok := v.Float()
	if !ok {
		return 0, &InvalidAttributeError{Key: key, Value: v, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &InvalidAttributeError{Key: key, Value: v, Reason: "not finite"}
	}
	if f < 0 {
		return 0, &InvalidAttributeError{Key: key, Value: v, Reason: "negative"}
	}
	return f, nil
}
