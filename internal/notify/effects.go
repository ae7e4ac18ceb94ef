package notify

// Effects bundles the side effects a feature store may trigger.
type Effects struct {
	// ShowToasts gates every toast.
	ShowToasts  bool
	Notifier    Notifier
	Invalidator Invalidator
}

// Toast presents t when toasts are enabled.
func (e Effects) Toast(t Toast) {
	if e.ShowToasts && e.Notifier != nil {
		e.Notifier.Notify(t)
	}
}

// Invalidate forwards keys to the invalidator, if any.
func (e Effects) Invalidate(keys ...QueryKey) {
	if e.Invalidator != nil && len(keys) > 0 {
		e.Invalidator.Invalidate(keys...)
	}
}
