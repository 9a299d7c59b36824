package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestSessionTimeoutsToBalancerTimeouts(t *testing.T) {
	s := &SessionTimeouts{
		TCPSynAck: durationpb.New(30 * time.Second),
		TCPSyn:    durationpb.New(30 * time.Second),
		TCPFin:    durationpb.New(20 * time.Second),
		TCP:       durationpb.New(300 * time.Second),
		UDP:       durationpb.New(60 * time.Second),
		Default:   durationpb.New(60 * time.Second),
	}

	got := s.ToBalancerTimeouts()
	assert.Equal(t, uint32(30), got.TCPSynAck)
	assert.Equal(t, uint32(30), got.TCPSyn)
	assert.Equal(t, uint32(20), got.TCPFin)
	assert.Equal(t, uint32(300), got.TCP)
	assert.Equal(t, uint32(60), got.UDP)
	assert.Equal(t, uint32(60), got.Default)
}

func TestSessionTimeoutsNilFieldsZero(t *testing.T) {
	var s *SessionTimeouts
	got := s.ToBalancerTimeouts()
	assert.Equal(t, uint32(0), got.TCP)
}
