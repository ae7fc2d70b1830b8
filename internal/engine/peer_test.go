package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/archsdn/sectorctl/internal/gpsid"
)

type PeerMarshalSuite struct {
	suite.Suite
}

func (s *PeerMarshalSuite) TestActivateRequestRoundTripsThroughKwargs() {
	label := uint32(42)
	req := ActivateRequest{
		GPSID: gpsid.ID{
			SourceControllerID: uuid.New(),
			SourceIPv4:         "10.0.0.1",
			TargetIPv4:         "10.0.0.2",
			ScenarioType:       gpsid.ICMPv4,
		},
		SectorRequestingService: "sector-a",
		MPLSLabel:               &label,
		HashVal:                 99,
	}

	kwargs := activateKwargs(req)
	got, err := ActivateRequestFromArgs(nil, kwargs)
	s.Require().NoError(err)

	s.Equal(req.GPSID, got.GPSID)
	s.Equal(req.SectorRequestingService, got.SectorRequestingService)
	s.Equal(req.HashVal, got.HashVal)
	s.Require().NotNil(got.MPLSLabel)
	s.Equal(*req.MPLSLabel, *got.MPLSLabel)
}

func (s *PeerMarshalSuite) TestActivateRequestWithoutLabelLeavesItNil() {
	req := ActivateRequest{
		GPSID: gpsid.ID{SourceControllerID: uuid.New(), ScenarioType: gpsid.IPv4},
	}
	got, err := ActivateRequestFromArgs(nil, activateKwargs(req))
	s.Require().NoError(err)
	s.Nil(got.MPLSLabel)
}

func (s *PeerMarshalSuite) TestActivateResultRoundTripsThroughBody() {
	gps := gpsid.ID{SourceControllerID: uuid.New(), ScenarioType: gpsid.ICMPv4}
	res := ActivateResult{Success: true, GPSID: gps, QValue: 0.73, PathLength: 4, Reason: "ok"}

	body := ActivateResultToBody(res)
	got := activateResultFromBody(gps, body)

	s.Equal(res.Success, got.Success)
	s.Equal(res.QValue, got.QValue)
	s.Equal(res.PathLength, got.PathLength)
	s.Equal(res.Reason, got.Reason)
}

func (s *PeerMarshalSuite) TestActivateResultFromMalformedBodyFails() {
	gps := gpsid.ID{SourceControllerID: uuid.New()}
	got := activateResultFromBody(gps, "not a map")
	s.False(got.Success)
	s.Equal("malformed activate_scenario reply", got.Reason)
}

func (s *PeerMarshalSuite) TestTerminateRequestRoundTripsThroughKwargs() {
	req := TerminateRequest{
		GPSID:              gpsid.ID{SourceControllerID: uuid.New(), ScenarioType: gpsid.MPLS},
		RequestingSectorID: "sector-b",
	}
	got, err := TerminateRequestFromArgs(nil, terminateKwargs(req))
	s.Require().NoError(err)
	s.Equal(req.GPSID, got.GPSID)
	s.Equal(req.RequestingSectorID, got.RequestingSectorID)
}

func TestPeerMarshalSuite(t *testing.T) {
	suite.Run(t, new(PeerMarshalSuite))
}
