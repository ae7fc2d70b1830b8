package controller

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/archsdn/sectorctl/internal/engine"
	"github.com/archsdn/sectorctl/internal/topology"
)

type DispatchSuite struct {
	suite.Suite
	ctx context.Context
	eng *engine.Engine
}

func (s *DispatchSuite) SetupTest() {
	s.ctx = context.Background()
	s.eng = NewEngine(uuid.New(), nil, nil)
}

func (s *DispatchSuite) TestBuildDispatchRegistersTheFixedMethodTable() {
	d := BuildDispatch(s.eng)
	for _, method := range []string{"req_local_time", "publish_event", "query_address_info", "activate_scenario", "terminate_scenario"} {
		s.Containsf(d, method, "missing method %s", method)
	}
	s.Len(d, 5)
}

func (s *DispatchSuite) TestReqLocalTimeReturnsRFC3339Timestamp() {
	got, err := reqLocalTime(s.ctx, nil, nil)
	s.Require().NoError(err)
	_, err = time.Parse(time.RFC3339Nano, got.(string))
	s.NoError(err)
}

func (s *DispatchSuite) TestPublishEventAlwaysSucceeds() {
	got, err := publishEvent(s.ctx, nil, map[string]interface{}{"switch_id": "sw1"})
	s.Require().NoError(err)
	s.Equal(true, got)
}

func (s *DispatchSuite) TestQueryAddressInfoFindsRegisteredHost() {
	host := &topology.Entity{
		ID:   "host-1",
		Kind: topology.KindHost,
		Host: &topology.Host{Name: "host-1", IPv4: net.ParseIP("10.0.0.5")},
	}
	s.Require().NoError(s.eng.Topology.AddEntity(host))

	handler := queryAddressInfo(s.eng)
	got, err := handler(s.ctx, nil, map[string]interface{}{"ipv4": "10.0.0.5"})
	s.Require().NoError(err)

	body := got.(map[string]interface{})
	s.Equal("host-1", body["name"])
	s.Equal(s.eng.ID.String(), body["controller_id"])
}

func (s *DispatchSuite) TestQueryAddressInfoUnknownHostIsAnError() {
	handler := queryAddressInfo(s.eng)
	_, err := handler(s.ctx, nil, map[string]interface{}{"ipv4": "10.0.0.99"})
	s.Error(err)
}

func TestDispatchSuite(t *testing.T) {
	suite.Run(t, new(DispatchSuite))
}
