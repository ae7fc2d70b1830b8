package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/gpsid"
	"github.com/archsdn/sectorctl/internal/idpool"
	"github.com/archsdn/sectorctl/internal/installer"
	"github.com/archsdn/sectorctl/internal/qlearn"
	"github.com/archsdn/sectorctl/internal/scenario"
	"github.com/archsdn/sectorctl/internal/taskguard"
	"github.com/archsdn/sectorctl/internal/topology"
)

type TerminateSuite struct {
	suite.Suite
	e   *Engine
	gps gpsid.ID
}

func (s *TerminateSuite) SetupTest() {
	s.e = &Engine{
		ID:        uuid.New(),
		Scenarios: scenario.NewRegistry(),
		Services:  installer.NewTables(),
	}
	s.gps = gpsid.ID{
		SourceControllerID: uuid.New(),
		SourceIPv4:         "10.0.0.1",
		TargetIPv4:         "10.0.0.2",
		ScenarioType:       gpsid.ICMPv4,
	}
}

func (s *TerminateSuite) TestTerminateNotActiveFails() {
	res := s.e.Terminate(context.Background(), TerminateRequest{GPSID: s.gps, RequestingSectorID: "sector-a"})
	s.False(res.Success)
	s.Equal(s.gps, res.GPSID)
}

func (s *TerminateSuite) TestTerminateActiveScenarioSucceedsAndPopsRecord() {
	s.Require().NoError(s.e.Scenarios.SetActive(s.gps.Key(), []string{"handle-1"}, map[string]struct{}{"sector-a": {}}))

	res := s.e.Terminate(context.Background(), TerminateRequest{GPSID: s.gps, RequestingSectorID: "sector-a"})
	s.True(res.Success)
	s.False(s.e.Scenarios.IsActive(s.gps.Key()), "terminate must pop the scenario record")
}

func (s *TerminateSuite) TestTerminateSkipsFanOutToTheRequestingSectorOnly() {
	// Requester is the only adjacent sector, so there is nothing left to fan
	// out to and Terminate must not attempt a peer call.
	s.Require().NoError(s.e.Scenarios.SetActive(s.gps.Key(), []string{"handle-1"}, map[string]struct{}{"sector-a": {}}))

	res := s.e.Terminate(context.Background(), TerminateRequest{GPSID: s.gps, RequestingSectorID: "sector-a"})
	s.True(res.Success)
}

func (s *TerminateSuite) TestTerminateReturnsCookiesAndLabelsToTheirPools() {
	// A three-switch chain forces the local activation to allocate an MPLS
	// label for internal tunneling; termination must hand it back along with
	// every cookie the installer took.
	topo := topology.NewModel()
	for i, sw := range []string{"switch1", "switch2", "switch3"} {
		s.Require().NoError(topo.AddEntity(&topology.Entity{ID: sw, Kind: topology.KindSwitch, Switch: &topology.Switch{DatapathID: uint64(i + 1)}}))
	}
	_, err := topo.AddLink("switch1", "switch2", &topology.Link{Capacity: 200, Free: 200})
	s.Require().NoError(err)
	_, err = topo.AddLink("switch2", "switch3", &topology.Link{Capacity: 200, Free: 200})
	s.Require().NoError(err)

	id := uuid.New()
	e := &Engine{
		ID:        id,
		Topology:  topo,
		Learning:  qlearn.NewTables(),
		Scenarios: scenario.NewRegistry(),
		Tasks:     taskguard.NewGuard(),
		OpenFlow:  fakeAdapter{},
		Central:   &fakeCentral{lookup: central.HostLookup{Name: "switch3", ControllerID: id}},
		Cookies:   idpool.NewCookieAllocator(),
		Labels:    idpool.NewMPLSLabelAllocator(),
		Services:  installer.NewTables(),
	}

	res := e.Activate(context.Background(), ActivateRequest{GPSID: s.gps, SectorRequestingService: "switch1"})
	s.Require().True(res.Success, res.Reason)
	s.Require().NotEmpty(e.Labels.Outstanding(), "a three-switch path must allocate a tunnel label")

	term := e.Terminate(context.Background(), TerminateRequest{GPSID: s.gps, RequestingSectorID: "switch1"})
	s.Require().True(term.Success)
	s.Empty(e.Labels.Outstanding(), "terminate must return the tunnel label to its pool")
	s.Empty(e.Cookies.Outstanding(), "terminate must return every cookie to its pool")
}

func TestTerminateSuite(t *testing.T) {
	suite.Run(t, new(TerminateSuite))
}
