package stage

import (
	"context"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *pipeline.Run) error
	Execute(context.Context, *pipeline.Run) error
	HealthCheck(context.Context) Health
}
