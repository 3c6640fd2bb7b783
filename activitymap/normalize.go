package activitymap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-workshop"
)

const (
	// MetadataKeyEmail stores the email carried by the event.
	MetadataKeyEmail = "email"
)

const (
	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// Normalize converts a store activity event into a generic normalized shape.
// The channel and object type come from the event type prefix: auth events
// act on an identity, profile events on a profile.
func Normalize(event workshop.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{actorFallback: defaultActorID}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	verb := string(event.EventType)
	channel, objectType := classify(verb)
	if options.channel != "" {
		channel = options.channel
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel overrides the channel derived from the event type.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink writes every normalized event to logger at info level.
func LogSink(logger *slog.Logger, opts ...Option) workshop.ActivitySink {
	if logger == nil {
		logger = slog.Default()
	}
	return workshop.ActivitySinkFunc(func(ctx context.Context, event workshop.ActivityEvent) error {
		n := Normalize(event, opts...)
		logger.LogAttrs(ctx, slog.LevelInfo, "activity",
			slog.String("verb", n.Verb),
			slog.String("channel", n.Channel),
			slog.String("actor_id", n.ActorID),
			slog.String("object_type", n.ObjectType),
			slog.String("object_id", n.ObjectID),
			slog.Any("metadata", n.Metadata),
			slog.Time("occurred_at", n.OccurredAt),
		)
		return nil
	})
}

func classify(verb string) (channel, objectType string) {
	head, _, _ := strings.Cut(verb, ".")
	switch head {
	case "profile":
		return "profile", "profile"
	case "auth":
		return "auth", "identity"
	default:
		return head, ""
	}
}

func normalizeMetadata(event workshop.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if email := strings.TrimSpace(event.Email); email != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyEmail]; !exists {
			metadata[MetadataKeyEmail] = email
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
