package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "complyd/pkg/domain-errors"
)

type JWTSuite struct {
	suite.Suite
	svc *Service
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) SetupTest() {
	s.svc = NewService("test-signing-key", "complyd-test")
}

func (s *JWTSuite) TestRoundTrip() {
	token, err := s.svc.GenerateToken("auditor-1", "admin", time.Minute)
	s.Require().NoError(err)

	claims, err := s.svc.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal("auditor-1", claims.ActorID)
	s.Equal("admin", claims.Role)
}

func (s *JWTSuite) TestExpiredToken() {
	token, err := s.svc.GenerateToken("auditor-1", "user", -time.Minute)
	s.Require().NoError(err)

	_, err = s.svc.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *JWTSuite) TestWrongKeyRejected() {
	other := NewService("different-key", "complyd-test")
	token, err := other.GenerateToken("auditor-1", "user", time.Minute)
	s.Require().NoError(err)

	_, err = s.svc.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
