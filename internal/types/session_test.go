package types

import "testing"

func TestSessionStateClone_IsIndependent(t *testing.T) {
	s := NewSessionState()
	s.Users = append(s.Users, Participant{ID: "u1", Name: "Alice", DeviceIDs: []string{"d1"}})
	s.Games = append(s.Games, QueueItem{ID: "g1", Name: "Hugo", UserID: "u1"})
	s.SubmissionsByDevice["d1"] = "g1"
	s.RebuildDeviceIndex()

	c := s.Clone()
	c.Users[0].DeviceIDs[0] = "changed"
	c.Users[0].Name = "Bob"
	c.Games[0].Name = "Other"
	c.SubmissionsByDevice["d2"] = "g2"
	c.BindDevice(&c.Users[0], "d3")

	if s.Users[0].DeviceIDs[0] != "d1" {
		t.Fatalf("device ids shared with clone: got=%q", s.Users[0].DeviceIDs[0])
	}
	if s.Users[0].Name != "Alice" {
		t.Fatalf("participant shared with clone: got=%q", s.Users[0].Name)
	}
	if s.Games[0].Name != "Hugo" {
		t.Fatalf("queue shared with clone: got=%q", s.Games[0].Name)
	}
	if len(s.SubmissionsByDevice) != 1 {
		t.Fatalf("submissions shared with clone: got=%d want=1", len(s.SubmissionsByDevice))
	}
	if s.ParticipantByDevice("d3") != nil {
		t.Fatalf("device index shared with clone")
	}
}

func TestBindDevice_IndexMatchesRebuild(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{name: "earlier participant bound first", order: []string{"u1", "u2"}},
		{name: "later participant bound first", order: []string{"u2", "u1"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := NewSessionState()
			s.Users = append(s.Users,
				Participant{ID: "u1", Name: "Alice"},
				Participant{ID: "u2", Name: "Bob"},
			)

			for _, id := range tc.order {
				s.BindDevice(s.Participant(id), "d1")
			}

			live := s.ParticipantByDevice("d1")
			if live == nil || live.ID != "u1" {
				t.Fatalf("unexpected owner for d1: got=%+v want=u1", live)
			}

			s.RebuildDeviceIndex()
			rebuilt := s.ParticipantByDevice("d1")
			if rebuilt == nil || rebuilt.ID != live.ID {
				t.Fatalf("owner changed after rebuild: got=%+v want=%s", rebuilt, live.ID)
			}
			for _, id := range []string{"u1", "u2"} {
				if len(s.Participant(id).DeviceIDs) != 1 {
					t.Fatalf("%s should record the device", id)
				}
			}
		})
	}
}

func TestNameKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{a: "Hugo", b: "hugo", same: true},
		{a: "  Book of Dead ", b: "BOOK OF DEAD", same: true},
		{a: "Åsa", b: "åsa", same: true},
		{a: "Hugo", b: "Hugo 2", same: false},
	}

	for _, tc := range tests {
		if got := SameName(tc.a, tc.b); got != tc.same {
			t.Fatalf("SameName(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.same)
		}
	}
}
