package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gespadel/gespadel/feed"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// notifier publishes change events after a write has been committed. A
// failed publish is logged and never undoes the write.
type notifier struct {
	publisher feed.Publisher
	logger    *slog.Logger
}

func (n notifier) emit(ctx context.Context, collection feed.Collection, op feed.Op, entityID, tournamentID string, doc interface{}) {
	if n.publisher == nil {
		return
	}
	ev, err := feed.NewEvent(collection, op, entityID, tournamentID, doc)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to build change event",
			slog.String("collection", string(collection)), slog.String("entity_id", entityID), slog.Any("error", err))
		return
	}
	if err := n.publisher.Publish(ctx, ev); err != nil {
		n.logger.WarnContext(ctx, "failed to publish change event",
			slog.String("event", ev.Type()), slog.String("entity_id", entityID), slog.Any("error", err))
	}
}

func checkContentType(contentType string, allowed ...string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, a := range allowed {
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(ct, strings.TrimSuffix(a, "*")) {
			return nil
		}
		if ct == a {
			return nil
		}
	}
	return newError(KindValidation, "unsupported content type %q", contentType)
}
