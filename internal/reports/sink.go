package reports

import (
	"context"
	"errors"

	"github.com/desertthunder/songmigrate/internal/models"
)

// Sink stores a completed report.
type Sink interface {
	Save(ctx context.Context, report *models.TransferReport) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, report *models.TransferReport) error

func (f SinkFunc) Save(ctx context.Context, report *models.TransferReport) error {
	return f(ctx, report)
}

type multi []Sink

// Multi returns a sink that saves to every non-nil sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Save(ctx context.Context, report *models.TransferReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
