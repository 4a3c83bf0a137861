package constant

// Job kinds run by the worker.
const (
	JobProcessSource            = "PROCESS_SOURCE"
	JobTranscribeSource         = "TRANSCRIBE_SOURCE"
	JobExtractSourceText        = "EXTRACT_SOURCE_TEXT"
	JobGenerateStructure        = "GENERATE_STRUCTURE"
	JobCreateVisualPlaceholders = "CREATE_VISUAL_PLACEHOLDERS"
	JobGenerateVisual           = "GENERATE_VISUAL"
	JobAssembleNote             = "ASSEMBLE_NOTE"
)

// AllJobs lists every job kind in pipeline order.
func AllJobs() []string {
	return []string{
		JobProcessSource,
		JobTranscribeSource,
		JobExtractSourceText,
		JobGenerateStructure,
		JobCreateVisualPlaceholders,
		JobGenerateVisual,
		JobAssembleNote,
	}
}

// Logger module tags.
const (
	ModuleQueue         = "QUEUE"
	ModuleOrchestrator  = "ORCHESTRATOR"
	ModuleTranscription = "TRANSCRIPTION"
	ModuleVisuals       = "VISUALS"
	ModuleAssembler     = "ASSEMBLER"
	ModuleTags          = "TAGS"
	ModuleJanitor       = "JANITOR"
	ModuleServer        = "SERVER"
	ModuleSupervisor    = "SUPERVISOR"
)

// Prefixes stored on visuals that failed at the image-search provider.
const (
	VisualAccountErrorPrefix = "ACCOUNT_ERROR"
	VisualAPIErrorPrefix     = "API_ERROR"
)
