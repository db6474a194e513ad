// Package calendar reads a user's calendar from Microsoft Graph and turns
// events into time-allocation summaries.
//
// Service wraps the Graph calls: mailbox settings for the profile, and the
// calendarView endpoint, either as the raw first page or as a fully paged
// list of typed events.
//
// Aggregate is pure. It converts each event's start and end into an hour
// count and adds it to a bucket chosen by the Dimension: the event's showAs
// status ("unknown" when absent) or its first category ("Uncategorized" when
// there are none). Values keep full float precision and negative durations
// pass through unchanged. A malformed timestamp fails the whole call with a
// *DataError.
//
//	svc := calendar.NewService(graphClient, calendar.ServiceConfig{})
//	events, err := svc.ListEvents(ctx, "someone@contoso.com", start, end)
//	if err != nil {
//		return err
//	}
//	hours, err := calendar.Aggregate(events, calendar.ByStatus)
package calendar
