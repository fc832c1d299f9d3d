package usecases

import (
	"github.com/samirrijal/geomeasure/internal/core/ports"
)

// Services is the application layer the adapters talk to.
type Services struct {
	Records *RecordService
	Groups  *GroupService
	Screens *ScreenRegistry
}

// NewServices wires the use cases over the given stores and brokers. Screens and
// group deletes persist through the RecordService so every write invalidates the
// cache, registers its group and emits a record event. cache, events and views may
// be nil.
func NewServices(store ports.RecordStore, groups ports.GroupStore, cache ports.CacheService, events ports.EventPublisher, views ports.ViewPublisher, maxAccuracy float64) *Services {
	records := NewRecordService(store, groups, cache, events)
	return &Services{
		Records: records,
		Groups:  NewGroupService(groups, records),
		Screens: NewScreenRegistry(records, views, maxAccuracy),
	}
}
