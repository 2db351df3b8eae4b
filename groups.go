package interactive

import "context"

// GroupService manages participant groups. Batched writes are transactional
// at the service: either every group in the call is applied or none is.
type GroupService struct {
	c *Client
}

type groupsPayload struct {
	Groups []Group `json:"groups"`
}

// Create adds groups in one transactional call.
func (s *GroupService) Create(ctx context.Context, groups ...Group) ([]Group, error) {
	var rep groupsPayload
	if err := s.c.call(ctx, methodCreateGroups, groupsPayload{Groups: groups}, &rep); err != nil {
		return nil, err
	}
	return rep.Groups, nil
}

// List returns every group the service knows.
func (s *GroupService) List(ctx context.Context) ([]Group, error) {
	var rep groupsPayload
	if err := s.c.call(ctx, methodGetGroups, nil, &rep); err != nil {
		return nil, err
	}
	return rep.Groups, nil
}

// Update replaces groups by id in one transactional call.
func (s *GroupService) Update(ctx context.Context, groups ...Group) ([]Group, error) {
	var rep groupsPayload
	if err := s.c.call(ctx, methodUpdateGroups, groupsPayload{Groups: groups}, &rep); err != nil {
		return nil, err
	}
	return rep.Groups, nil
}

// Delete removes a group and moves its participants to reassignID. An empty
// reassignID moves them to the default group.
func (s *GroupService) Delete(ctx context.Context, groupID, reassignID string) error {
	if reassignID == "" {
		reassignID = DefaultReassignTarget
	}
	params := struct {
		GroupID         string `json:"groupID"`
		ReassignGroupID string `json:"reassignGroupID"`
	}{GroupID: groupID, ReassignGroupID: reassignID}
	return s.c.call(ctx, methodDeleteGroup, params, nil)
}
