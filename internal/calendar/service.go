package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
)

const (
	// DefaultMaxPages bounds how many calendarView pages ListEvents follows.
	DefaultMaxPages = 50

	// statsPageSize is the $top requested when listing events for stats.
	statsPageSize = 100
)

// Upstream is the part of graph.Client the service needs.
type Upstream interface {
	Get(ctx context.Context, path string, query map[string]string) (json.RawMessage, error)
	GetJSON(ctx context.Context, path string, query map[string]string, out any) error
	GetLinkJSON(ctx context.Context, link string, out any) error
}

// ServiceConfig holds optional settings for a Service.
type ServiceConfig struct {
	MaxPages int
	Logger   logging.Logger
	Metrics  *instrumentation.Metrics
}

// Service reads mailbox settings and calendar events for a user.
type Service struct {
	upstream Upstream
	maxPages int
	logger   logging.Logger
	metrics  *instrumentation.Metrics
}

// NewService returns a Service backed by upstream.
func NewService(upstream Upstream, cfg ServiceConfig) *Service {
	s := &Service{
		upstream: upstream,
		maxPages: cfg.MaxPages,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if s.maxPages <= 0 {
		s.maxPages = DefaultMaxPages
	}
	if s.logger == nil {
		s.logger = logging.DefaultLogger()
	}
	return s
}

// Profile returns the user's time zone and working hours. Missing working
// hours are reported as an empty object.
func (s *Service) Profile(ctx context.Context, user string) (*Profile, error) {
	var settings mailboxSettings
	if err := s.upstream.GetJSON(ctx, userPath(user, "mailboxSettings"), nil, &settings); err != nil {
		return nil, err
	}

	profile := &Profile{
		TimeZone:     settings.TimeZone,
		WorkingHours: settings.WorkingHours,
	}
	if len(profile.WorkingHours) == 0 || string(profile.WorkingHours) == "null" {
		profile.WorkingHours = json.RawMessage("{}")
	}
	return profile, nil
}

// CalendarView returns the first calendarView page for [start, end) exactly
// as Graph sent it. An empty fields selects ViewFields.
func (s *Service) CalendarView(ctx context.Context, user, start, end, fields string) (json.RawMessage, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	if fields == "" {
		fields = ViewFields
	}
	return s.upstream.Get(ctx, userPath(user, "calendarView"), viewQuery(start, end, fields))
}

// ListEvents returns every event in [start, end) with the stats projection,
// following @odata.nextLink. It fails with ErrPageLimit rather than return a
// truncated list.
func (s *Service) ListEvents(ctx context.Context, user, start, end string) ([]Event, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartSpan(ctx, "calendar.list_events",
		instrumentation.NewSpanAttributeBuilder().WithUser(user).Build()...)
	defer span.End()

	query := viewQuery(start, end, StatsFields)
	query["$top"] = strconv.Itoa(statsPageSize)

	var page eventPage
	if err := s.upstream.GetJSON(ctx, userPath(user, "calendarView"), query, &page); err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	events := page.Value
	pages := 1
	for page.NextLink != "" {
		if pages >= s.maxPages {
			err := fmt.Errorf("%w: more than %d pages", ErrPageLimit, s.maxPages)
			instrumentation.SetSpanError(span, err)
			return nil, err
		}

		next := page.NextLink
		page = eventPage{}
		if err := s.upstream.GetLinkJSON(ctx, next, &page); err != nil {
			instrumentation.SetSpanError(span, err)
			return nil, err
		}
		events = append(events, page.Value...)
		pages++
	}

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrPages, pages))
	instrumentation.SetSpanSuccess(span)
	s.logger.Debug("calendar events listed",
		logging.UserHash(user),
		"pages", pages,
		"events", len(events))

	return events, nil
}

// Stats lists the events in [start, end) and aggregates them by dim.
func (s *Service) Stats(ctx context.Context, user, start, end string, dim Dimension) (BucketMap, error) {
	ctx, span := instrumentation.StartSpan(ctx, "calendar.stats",
		instrumentation.NewSpanAttributeBuilder().WithUser(user).WithDimension(string(dim)).Build()...)
	defer span.End()

	events, err := s.ListEvents(ctx, user, start, end)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	buckets, err := Aggregate(events, dim)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.logger.Warn("calendar data could not be aggregated",
			logging.UserHash(user),
			"dimension", string(dim),
			logging.Err(err))
		return nil, err
	}

	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithEventCount(len(events)).Build()...)
	instrumentation.SetSpanSuccess(span)
	s.metrics.RecordEventsAggregated(ctx, string(dim), len(events))
	return buckets, nil
}

// ValidateRange checks that both ends of a range were supplied. The values
// are passed to Graph as given.
func ValidateRange(start, end string) error {
	var missing []string
	if strings.TrimSpace(start) == "" {
		missing = append(missing, "start")
	}
	if strings.TrimSpace(end) == "" {
		missing = append(missing, "end")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingRange, strings.Join(missing, ", "))
	}
	return nil
}

func userPath(user, resource string) string {
	return "/users/" + url.PathEscape(user) + "/" + resource
}

func viewQuery(start, end, fields string) map[string]string {
	return map[string]string{
		"startDateTime": start,
		"endDateTime":   end,
		"$select":       fields,
	}
}
