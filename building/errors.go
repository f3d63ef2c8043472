package building

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
	"github.com/b2gm/lodmap/geom"
	"github.com/b2gm/lodmap/proj"
	"github.com/b2gm/lodmap/stats"
)

type MissingAttributeError struct {
	Key string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q", e.Key)
}

type InvalidAttributeError struct {
	Key    string
	Value  element.Value
	Reason string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("attribute %q (%s %s): %s", e.Key, e.Value.Kind, e.Value, e.Reason)
}

// UnsupportedGeometryError is returned for features that are neither
// polygons nor multipolygons.
type UnsupportedGeometryError struct {
	Type string
}

func (e *UnsupportedGeometryError) Error() string {
	return "unsupported geometry " + e.Type
}

// BatchError is a feature error that failed a batch.
type BatchError struct {
	Batch   string
	Feature int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: feature %d: %v", e.Batch, e.Feature, e.Err)
}

func (e *BatchError) Cause() error {
	return e.Err
}

// alwaysSkipped reports errors that never fail a batch.
func alwaysSkipped(err error) bool {
	switch errors.Cause(err).(type) {
	case *UnsupportedGeometryError:
		return true
	}
	err = errors.Cause(err)
	return err == geom.ErrDegenerateRing || err == geom.ErrNonPositiveHeight
}

// skipReason maps err to a stats label.
func skipReason(err error) string {
	switch err := errors.Cause(err).(type) {
	case *UnsupportedGeometryError:
		return stats.ReasonUnsupportedGeometry
	case *MissingAttributeError:
		return stats.ReasonMissingAttribute
	case *InvalidAttributeError:
		return stats.ReasonInvalidAttribute
	case *proj.ProjectionError:
		return stats.ReasonProjection
	default:
		switch err {
		case geom.ErrDegenerateRing:
			return stats.ReasonDegenerate
		case geom.ErrNonPositiveHeight:
			return stats.ReasonZeroHeight
		}
	}
	return stats.ReasonOther
}
