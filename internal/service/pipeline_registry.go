package service

import (
	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/pkg/queue"
)

// RegisterPipeline binds every job kind to its handler. It must run before
// the queue is started.
func RegisterPipeline(q queue.Queue, orchestrator IOrchestratorService, visuals IVisualService, assembler IAssemblerService) {
	q.Register(constant.JobProcessSource, orchestrator.ProcessSource)
	q.Register(constant.JobTranscribeSource, orchestrator.TranscribeSource)
	q.Register(constant.JobExtractSourceText, orchestrator.ExtractSourceText)
	q.Register(constant.JobGenerateStructure, orchestrator.GenerateStructure)
	q.Register(constant.JobCreateVisualPlaceholders, visuals.CreatePlaceholders)
	q.Register(constant.JobGenerateVisual, visuals.GenerateVisual)
	q.Register(constant.JobAssembleNote, assembler.AssembleNote)
}
