package topology

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
)

// PathSuite exercises bandwidth-constrained path construction and release on
// a small linear topology: hostA -- switch1 -- switch2 -- hostB.
type PathSuite struct {
	suite.Suite
	m *Model
}

const linkFree int64 = 150

func (s *PathSuite) SetupTest() {
	s.m = NewModel()
	s.Require().NoError(s.m.AddEntity(&Entity{ID: "hostA", Kind: KindHost, Host: &Host{Name: "hostA"}}))
	s.Require().NoError(s.m.AddEntity(&Entity{ID: "switch1", Kind: KindSwitch, Switch: &Switch{DatapathID: 1}}))
	s.Require().NoError(s.m.AddEntity(&Entity{ID: "switch2", Kind: KindSwitch, Switch: &Switch{DatapathID: 2}}))
	s.Require().NoError(s.m.AddEntity(&Entity{ID: "hostB", Kind: KindHost, Host: &Host{Name: "hostB"}}))

	for _, pair := range [][2]string{{"hostA", "switch1"}, {"switch1", "switch2"}, {"switch2", "hostB"}} {
		_, err := s.m.AddLink(pair[0], pair[1], &Link{Capacity: linkFree, Free: linkFree})
		s.Require().NoError(err)
	}
}

func (s *PathSuite) TestBidirectionalPathTraversesOnlySwitchHops() {
	path, err := s.m.ConstructBidirectionalPath("hostA", "hostB", 100, nil, nil)
	s.Require().NoError(err)

	want := []Hop{{SwitchID: "switch1", PortIn: 0, PortOut: 0}, {SwitchID: "switch2", PortIn: 0, PortOut: 0}}
	if diff := cmp.Diff(want, path.Hops); diff != "" {
		s.Fail("unexpected hop sequence", diff)
	}
	s.Equal(int64(100), path.AllocatedBandwidth)
}

func (s *PathSuite) TestSecondReservationFailsWhenBandwidthExhausted() {
	first, err := s.m.ConstructBidirectionalPath("hostA", "hostB", 100, nil, nil)
	s.Require().NoError(err)

	_, err = s.m.ConstructBidirectionalPath("hostA", "hostB", 100, nil, nil)
	s.Error(err, "150 free - 100 reserved leaves only 50, below a second 100 request")

	s.m.Release(first)
	_, err = s.m.ConstructBidirectionalPath("hostA", "hostB", 100, nil, nil)
	s.NoError(err, "releasing the first reservation should free enough bandwidth for a second")
}

func (s *PathSuite) TestUnidirectionalPathReservesNothing() {
	path, err := s.m.ConstructUnidirectionalPath("hostA", "hostB", nil, nil)
	s.Require().NoError(err)
	s.Equal(int64(0), path.AllocatedBandwidth)

	// Unidirectional construction must never consume bandwidth: two back to
	// back calls for the same pair both succeed with no reservation between.
	_, err = s.m.ConstructUnidirectionalPath("hostA", "hostB", nil, nil)
	s.Require().NoError(err)
}

func (s *PathSuite) TestNoPathBetweenUnknownEntities() {
	_, err := s.m.ConstructUnidirectionalPath("hostA", "ghost", nil, nil)
	s.Error(err)
}

func TestPathSuite(t *testing.T) {
	suite.Run(t, new(PathSuite))
}
