package pricing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

const SlotName = "pricing"

// Service reads and writes the prices shared by the admissions payment step and the revenue report.
type Service struct {
	store  core.RecordStore
	doc    core.Document[Config]
	logger core.Logger
}

func NewService(store core.RecordStore, logger core.Logger) *Service {
	return &Service{
		store:  store,
		doc:    core.NewDocument[Config](store, SlotName),
		logger: logger,
	}
}

// Get returns the saved prices or the defaults if none were saved.
// A corrupt slot is logged and read as the defaults.
func (svc *Service) Get(ctx context.Context) (Config, error) {
	conf, found, err := svc.doc.Load(ctx)
	if err != nil {
		if errors.Is(err, core.ErrStorageCorrupt) {
			svc.logger.Error("pricing: treating corrupt slot as defaults", err)
			return Defaults(), nil
		}
		return Config{}, err
	}
	if !found {
		return Defaults(), nil
	}
	return conf, nil
}

// Set merges u into the saved prices (or the defaults) and saves the result.
func (svc *Service) Set(ctx context.Context, u Update) (Config, error) {
	if err := u.Validate(); err != nil {
		return Config{}, err
	}

	var conf Config
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		current, found, err := svc.doc.Read(b)
		if err != nil {
			return err
		}
		if !found {
			current = Defaults()
		}
		conf = u.apply(current)
		return svc.doc.Stage(b, conf)
	})
	if err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Reset overwrites the saved prices with the defaults.
func (svc *Service) Reset(ctx context.Context) (Config, error) {
	conf := Defaults()
	if err := svc.doc.Save(ctx, conf); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (svc *Service) Price(ctx context.Context, plan string) (float64, error) {
	conf, err := svc.Get(ctx)
	if err != nil {
		return 0, err
	}
	return conf.Price(plan)
}
