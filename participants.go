package interactive

import (
	"context"
	"sort"
)

// ParticipantService queries and updates the audience of the session.
type ParticipantService struct {
	c *Client
}

type participantsReply struct {
	Participants []Participant `json:"participants"`
	Total        uint32        `json:"total"`
	HasMore      bool          `json:"hasMore"`
}

// All returns every participant connected to the session, sorted by connect
// time ascending. The server paginates; pages are requested with a `from`
// marker advanced to the last element's connect time until the server
// reports no more.
func (s *ParticipantService) All(ctx context.Context) ([]Participant, error) {
	return s.page(ctx, methodGetAllParticipants, "from", 0,
		func(p *Participant) uint64 { return p.ConnectedAt })
}

// Active returns the participants that have given input since threshold
// (milliseconds since epoch), sorted by last input time ascending.
func (s *ParticipantService) Active(ctx context.Context, threshold uint64) ([]Participant, error) {
	return s.page(ctx, methodGetActiveParticipants, "threshold", threshold,
		func(p *Participant) uint64 { return p.LastInputAt })
}

// page walks the server's pagination. The marker advances to the key of the
// last element of each batch; the walk stops when the server reports no more
// pages or a page comes back empty, whichever happens first. The empty-page
// guard prevents looping forever against a server that keeps hasMore set on
// an exhausted result set.
func (s *ParticipantService) page(ctx context.Context, method, markerKey string, marker uint64, key func(*Participant) uint64) ([]Participant, error) {
	var out []Participant
	seen := make(map[string]struct{})

	for {
		var rep participantsReply
		if err := s.c.call(ctx, method, map[string]uint64{markerKey: marker}, &rep); err != nil {
			return nil, err
		}
		if len(rep.Participants) == 0 {
			break
		}

		for _, p := range rep.Participants {
			if _, dup := seen[p.SessionID]; dup {
				continue
			}
			seen[p.SessionID] = struct{}{}
			out = append(out, p)
		}
		marker = key(&rep.Participants[len(rep.Participants)-1])

		if !rep.HasMore {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return key(&out[i]) < key(&out[j]) })
	return out, nil
}

// Update pushes participant mutations (group moves, disabling) to the
// service and returns the participants as the service now sees them.
func (s *ParticipantService) Update(ctx context.Context, participants ...Participant) ([]Participant, error) {
	params := struct {
		Participants []Participant `json:"participants"`
	}{Participants: participants}

	var rep participantsReply
	if err := s.c.call(ctx, methodUpdateParticipants, params, &rep); err != nil {
		return nil, err
	}
	return rep.Participants, nil
}
