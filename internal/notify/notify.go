// Package notify delivers risk alerts raised by the risk trigger.
//
// Notifiers satisfy engine.Notifier. LogNotifier writes alerts to the
// structured log, RedisNotifier publishes them on a Redis pub/sub channel,
// and Multi fans one alert out to several notifiers.
package notify

import (
	"context"
	"errors"

	"github.com/roach88/registrar/internal/model"
)

// Notifier delivers one risk alert.
type Notifier interface {
	Notify(ctx context.Context, alert model.RiskAlert) error
}

// Multi sends every alert to each notifier in order. All notifiers are
// tried; their errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, alert model.RiskAlert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
