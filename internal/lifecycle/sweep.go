package lifecycle

// SweepDeletions removes channels whose persisted delete-after time has
// passed. Deletion is best-effort and single-attempt: the entry is cleared
// whether or not the platform call succeeds, so a channel already removed by
// hand does not poison the queue. Anything left behind is manual cleanup.
func (e *Engine) SweepDeletions() {
	due, err := e.store.DueDeletions(e.now())
	if err != nil {
		e.logger.Error("deletion sweep query failed", "error", err)
		return
	}
	for _, channelID := range due {
		if err := e.client.DeleteChannel(channelID); err != nil {
			e.logger.Error("channel deletion failed", "channel", channelID, "error", err)
		} else {
			e.logger.Info("channel deleted", "channel", channelID)
		}
		if err := e.store.ClearDeletion(channelID); err != nil {
			e.logger.Error("deletion entry clear failed", "channel", channelID, "error", err)
		}
	}
}
