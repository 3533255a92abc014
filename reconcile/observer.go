package reconcile

import "github.com/tailored-agentic-units/retention/observability"

// Driver event types.
const (
	EventConversationOpen observability.EventType = "reconcile.conversation.open"
	EventPassComplete     observability.EventType = "reconcile.pass.complete"
	EventIncrementalSkip  observability.EventType = "reconcile.incremental.skip"
	EventSettingChanged   observability.EventType = "reconcile.setting.changed"
	EventSettingsCorrupt  observability.EventType = "reconcile.settings.corrupt"
	EventPresentFailed    observability.EventType = "reconcile.present.failed"
	EventPersistFailed    observability.EventType = "reconcile.persist.failed"
	EventDebouncedFailed  observability.EventType = "reconcile.debounced.failed"
)
