package httpapi

import (
	"context"
	"fmt"

	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/workflow"
)

// execute runs the workflow-agent method an approved action maps to. The
// session lock is held for the whole call, so an approved batch never
// interleaves with another mutation of the same session.
func (s *Server) execute(ctx context.Context, req ledger.ActionRequest) (any, error) {
	session := s.Sessions.GetOrCreate(req.SessionID, s.Location)

	var result any
	err := session.WithAgent(func(a *workflow.Agent) error {
		switch d := req.Details.(type) {
		case ledger.SendEmailDetails:
			res, err := a.SendEmails(ctx, d.Subject)
			result = res
			return err
		case ledger.ScheduleMeetingDetails:
			res, err := a.ScheduleMeetings(ctx, d.EventType)
			result = res
			return err
		case ledger.FullOutreachDetails:
			res, err := a.FullOutreach(ctx, d.Subject, d.EventType)
			result = res
			return err
		case ledger.PostNotificationDetails:
			if err := a.PostNotification(ctx, d.Message, d.Channel); err != nil {
				return err
			}
			result = map[string]any{"posted": true, "channel": d.Channel}
			return nil
		case ledger.AddContactDetails:
			result = a.AddContact(d.Name, d.Email, d.Role, d.Context)
			return nil
		default:
			return fmt.Errorf("no executor for action kind %q", req.Kind)
		}
	})
	return result, err
}
