package registry

// Observer receives registry events for metrics
type Observer interface {
	TransitionObserved(action string, err error)
	PackageDownloaded(pluginID string)
	CacheEvent(event string)
}

// NopObserver discards all events
type NopObserver struct{}

func (NopObserver) TransitionObserved(string, error) {}
func (NopObserver) PackageDownloaded(string)         {}
func (NopObserver) CacheEvent(string)                {}
