package workflow

import "github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Model building stages run in the foreground lane; publication runs in the
// background lane so a long smoke test never blocks the next training run.
func (m *Manager) ConfigureStages(set StageSet) {
	foreground := &laneState{kind: laneForeground, name: "foreground", notificationsEnabled: true}
	background := &laneState{kind: laneBackground, name: "background", notificationsEnabled: false}

	if set.Trainer != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "trainer",
			handler:          set.Trainer,
			startStatus:      pipeline.StatusPending,
			processingStatus: pipeline.StatusTraining,
			doneStatus:       pipeline.StatusTrained,
		})
	}
	if set.Converter != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "converter",
			handler:          set.Converter,
			startStatus:      pipeline.StatusTrained,
			processingStatus: pipeline.StatusConverting,
			doneStatus:       pipeline.StatusConverted,
		})
	}
	if set.Quantizer != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "quantizer",
			handler:          set.Quantizer,
			startStatus:      pipeline.StatusConverted,
			processingStatus: pipeline.StatusQuantizing,
			doneStatus:       pipeline.StatusQuantized,
		})
	}
	if set.Evaluator != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "evaluator",
			handler:          set.Evaluator,
			startStatus:      pipeline.StatusQuantized,
			processingStatus: pipeline.StatusEvaluating,
			doneStatus:       pipeline.StatusEvaluated,
		})
	}
	if set.Publisher != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "publisher",
			handler:          set.Publisher,
			startStatus:      pipeline.StatusEvaluated,
			processingStatus: pipeline.StatusPublishing,
			doneStatus:       pipeline.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(foreground.stages) > 0 {
		foreground.finalize()
		lanes[foreground.kind] = foreground
		order = append(order, foreground.kind)
	}
	if len(background.stages) > 0 {
		background.finalize()
		lanes[background.kind] = background
		order = append(order, background.kind)
	}

	for _, lane := range lanes {
		if lane == nil {
			continue
		}
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
