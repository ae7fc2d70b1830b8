package taskguard

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/archsdn/sectorctl/internal/engineerr"
)

type GuardSuite struct {
	suite.Suite
	g *Guard
}

func (s *GuardSuite) SetupTest() {
	s.g = NewGuard()
}

func (s *GuardSuite) TestAcquireThenCollide() {
	tok, err := s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.Require().NoError(err)
	s.NotNil(tok)

	_, err = s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.ErrorIs(err, engineerr.ErrTaskExists)
}

func (s *GuardSuite) TestDifferentClassDoesNotCollide() {
	_, err := s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.Require().NoError(err)
	_, err = s.g.Acquire(ClassMPLSAny, "gpsid-1")
	s.Require().NoError(err)
}

func (s *GuardSuite) TestReleaseThenReacquire() {
	tok, err := s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.Require().NoError(err)
	tok.Release()

	_, err = s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.Require().NoError(err)
}

func (s *GuardSuite) TestReleaseIsIdempotent() {
	tok, err := s.g.Acquire(ClassIPv4ICMP, "gpsid-1")
	s.Require().NoError(err)
	tok.Release()
	tok.Release()
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}
