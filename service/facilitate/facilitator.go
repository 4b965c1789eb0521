package facilitate

import (
	"context"

	"github.com/viant/facilitor/model/ambiance"
)

// Facilitator inspects a node's obtainment parameters and decides how the
// node should run.  A nil decision with a nil error means "not mine";
// dispatch moves on to the next obtainment.  A non-nil error aborts
// facilitation for the node.
type Facilitator interface {
	Name() string
	Facilitate(ctx context.Context, ambiance *ambiance.Ambiance, parameters map[string]interface{}) (*Decision, error)
}
