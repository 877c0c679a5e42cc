// Package experiments resolves which A/B wording variant, if any, applies to
// a notification type. The remote experiment store wins; static config is the
// fallback. Both paths share one weighted-selection routine.
package experiments

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/weighted"
)

// experimentStore is the remote experiment lookup. Implemented by
// *store.Client.
type experimentStore interface {
	ActiveExperiment(ctx context.Context, notificationType string) (*store.Experiment, error)
}

// Selector resolves experiment variants per notification type.
type Selector struct {
	remote experimentStore
	static map[string]*store.Experiment
	intn   func(int) int
	logger *logger.Logger
}

// NewSelector creates a variant selector. The static table comes from the
// YAML config via StaticExperiments.
func NewSelector(remote experimentStore, static map[string]*store.Experiment, log *logger.Logger) *Selector {
	return &Selector{
		remote: remote,
		static: static,
		intn:   rand.Intn,
		logger: log.WithComponent("experiments"),
	}
}

// SelectVariant picks a wording variant for this notification type, or
// (nil, "") when no experiment is active. Remote lookup failures are logged
// and treated as "no active experiment" — never as a pipeline failure.
func (s *Selector) SelectVariant(ctx context.Context, notificationType string) (*store.Variant, string) {
	exp, err := s.remote.ActiveExperiment(ctx, notificationType)
	if err != nil {
		s.logger.WithContext(ctx).Warn("remote experiment lookup failed, falling back to static config",
			slog.String("notification_type", notificationType),
			slog.String("error", err.Error()))
		exp = nil
	}

	if exp == nil {
		exp = s.static[notificationType]
	}

	if exp == nil || !exp.IsActive || len(exp.Variants) == 0 {
		return nil, ""
	}

	idx := weighted.Choose(s.intn, len(exp.Variants), func(i int) int {
		return exp.Variants[i].Weight
	})

	variant := exp.Variants[idx]
	return &variant, exp.ExperimentID
}

// StaticExperiments converts the YAML notification table into the selector's
// static experiment map.
func StaticExperiments(notifications map[string]*config.NotificationTypeConfig) map[string]*store.Experiment {
	static := make(map[string]*store.Experiment)
	for name, nt := range notifications {
		if nt.Experiment == nil {
			continue
		}

		exp := &store.Experiment{
			ExperimentID:     nt.Experiment.ExperimentID,
			NotificationType: name,
			IsActive:         nt.Experiment.IsActive,
		}
		for _, v := range nt.Experiment.Variants {
			exp.Variants = append(exp.Variants, store.Variant{
				VariantID: v.VariantID,
				Weight:    v.Weight,
				Title:     v.Title,
				Body:      v.Body,
				Emoji:     v.Emoji,
				DeepLink:  v.DeepLink,
			})
		}
		static[name] = exp
	}
	return static
}
