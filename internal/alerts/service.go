package alerts

import "context"

// Service exposes the read and administrative side of the pipeline.
type Service struct {
	Store Store
	Log   EventLog
}

func (s *Service) ListAll(ctx context.Context) ([]Alert, error) {
	return s.Store.ListAll(ctx)
}

func (s *Service) ListBySKU(ctx context.Context, sku string) ([]Alert, error) {
	return s.Store.ListBySKU(ctx, sku)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.Store.Count(ctx)
}

// DeleteAll is an administrative reset. The event log is left untouched.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.Store.DeleteAll(ctx)
}

func (s *Service) Events() []Event { return s.Log.Events() }

func (s *Service) ClearEvents() { s.Log.Clear() }
