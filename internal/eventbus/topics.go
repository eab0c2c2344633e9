package eventbus

// Event types published by the discovery pipeline.
const (
	CycleStarted  = "cycle.started"
	CycleSkipped  = "cycle.skipped"
	CycleFinished = "cycle.finished"

	SubscriberAdded       = "subscriber.added"
	SubscriberRemoved     = "subscriber.removed"
	SubscriberAutoRemoved = "subscriber.auto_removed"

	ScheduleChanged = "schedule.changed"

	ConfigReloaded = "config.reloaded"
)
