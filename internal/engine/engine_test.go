package engine

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/archsdn/sectorctl/internal/central"
	"github.com/archsdn/sectorctl/internal/engineerr"
	"github.com/archsdn/sectorctl/internal/gpsid"
	"github.com/archsdn/sectorctl/internal/idpool"
	"github.com/archsdn/sectorctl/internal/installer"
	"github.com/archsdn/sectorctl/internal/openflow"
	"github.com/archsdn/sectorctl/internal/qlearn"
	"github.com/archsdn/sectorctl/internal/scenario"
	"github.com/archsdn/sectorctl/internal/taskguard"
	"github.com/archsdn/sectorctl/internal/topology"
)

// fakeDatapath/fakeAdapter are a minimal local double for the southbound
// OpenFlow adapter, which this package never touches beyond the narrow
// Adapter interface.
type fakeDatapath uint64

func (d fakeDatapath) ID() uint64 { return uint64(d) }

type fakeAdapter struct{}

func (fakeAdapter) SendMsg(context.Context, openflow.Datapath, openflow.FlowMod) error { return nil }
func (fakeAdapter) GetDatapath(_ context.Context, dpid uint64) (openflow.Datapath, error) {
	return fakeDatapath(dpid), nil
}

// fakeCentral resolves every address lookup to a fixed HostLookup, so
// Activate's target-resolution step is deterministic in tests.
type fakeCentral struct {
	lookup central.HostLookup
}

func (f *fakeCentral) RegisterController(context.Context, uuid.UUID, *central.AddressInfo, *central.AddressInfo) error {
	return nil
}
func (f *fakeCentral) UpdateControllerAddress(context.Context, uuid.UUID, *central.AddressInfo, *central.AddressInfo) error {
	return nil
}
func (f *fakeCentral) QueryControllerInfo(context.Context, uuid.UUID) (central.ControllerInfo, error) {
	return central.ControllerInfo{}, nil
}
func (f *fakeCentral) QueryAddressInfo(context.Context, net.IP, net.IP, net.HardwareAddr) (central.HostLookup, error) {
	return f.lookup, nil
}
func (f *fakeCentral) QueryCentralNetworkPolicies(context.Context) (central.NetworkPolicies, error) {
	return central.NetworkPolicies{}, nil
}
func (f *fakeCentral) QueryClientInfo(context.Context, uuid.UUID, int) (central.HostLookup, error) {
	return central.HostLookup{}, nil
}

type ActivateSuite struct {
	suite.Suite
	e   *Engine
	id  uuid.UUID
	gps gpsid.ID
}

func (s *ActivateSuite) SetupTest() {
	s.id = uuid.New()
	topo := topology.NewModel()
	s.Require().NoError(topo.AddEntity(&topology.Entity{ID: "switch1", Kind: topology.KindSwitch, Switch: &topology.Switch{DatapathID: 1}}))
	s.Require().NoError(topo.AddEntity(&topology.Entity{ID: "switch2", Kind: topology.KindSwitch, Switch: &topology.Switch{DatapathID: 2}}))
	_, err := topo.AddLink("switch1", "switch2", &topology.Link{Capacity: 200, Free: 200})
	s.Require().NoError(err)

	s.e = &Engine{
		ID:        s.id,
		Topology:  topo,
		Learning:  qlearn.NewTables(),
		Scenarios: scenario.NewRegistry(),
		Tasks:     taskguard.NewGuard(),
		OpenFlow:  fakeAdapter{},
		Central:   &fakeCentral{lookup: central.HostLookup{Name: "switch2", ControllerID: s.id}},
		Cookies:   idpool.NewCookieAllocator(),
		Labels:    idpool.NewMPLSLabelAllocator(),
		Services:  installer.NewTables(),
	}
	s.gps = gpsid.ID{
		SourceControllerID: uuid.New(),
		SourceIPv4:         "10.0.0.1",
		TargetIPv4:         "10.0.0.2",
		ScenarioType:       gpsid.ICMPv4,
	}
}

func (s *ActivateSuite) TestLoopDetectedWhenSourceIsSelf() {
	req := ActivateRequest{GPSID: gpsid.ID{SourceControllerID: s.id, ScenarioType: gpsid.ICMPv4}, SectorRequestingService: "switch1"}
	res := s.e.Activate(context.Background(), req)
	s.False(res.Success)
	s.Equal("loop detected", res.Reason)
	s.ErrorIs(res.Err, engineerr.ErrLoopDetected)
}

func (s *ActivateSuite) TestAlreadyImplementedWhenScenarioActive() {
	s.Require().NoError(s.e.Scenarios.SetActive(s.gps.Key(), []string{"handle-1"}, map[string]struct{}{"switch1": {}}))
	req := ActivateRequest{GPSID: s.gps, SectorRequestingService: "switch1"}
	res := s.e.Activate(context.Background(), req)
	s.False(res.Success)
	s.Equal("already implemented", res.Reason)
	s.ErrorIs(res.Err, engineerr.ErrAlreadyImplemented)
}

func (s *ActivateSuite) TestLocalActivationInstallsAPathAndMarksScenarioActive() {
	req := ActivateRequest{GPSID: s.gps, SectorRequestingService: "switch1"}
	res := s.e.Activate(context.Background(), req)
	s.Require().True(res.Success, res.Reason)
	s.True(s.e.Scenarios.IsActive(s.gps.Key()))
}

func (s *ActivateSuite) TestDuplicateTaskIsRejectedWhileInFlight() {
	class := taskguard.Class{L3: "IPv4", L4: "ICMP"}
	tok, err := s.e.Tasks.Acquire(class, s.gps.Key())
	s.Require().NoError(err)
	defer tok.Release()

	req := ActivateRequest{GPSID: s.gps, SectorRequestingService: "switch1"}
	res := s.e.Activate(context.Background(), req)
	s.False(res.Success)
	s.ErrorIs(res.Err, engineerr.ErrTaskExists)
}

func TestActivateSuite(t *testing.T) {
	suite.Run(t, new(ActivateSuite))
}
