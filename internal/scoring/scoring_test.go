package scoring

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "complyd/pkg/domain-errors"
)

type ScoringSuite struct {
	suite.Suite
}

func TestScoringSuite(t *testing.T) {
	suite.Run(t, new(ScoringSuite))
}

func (s *ScoringSuite) TestRiskScore() {
	s.Run("whole likelihood x impact grid is deterministic", func() {
		for likelihood := 1; likelihood <= 5; likelihood++ {
			for impact := 1; impact <= 5; impact++ {
				score, err := RiskScore(likelihood, impact)
				s.Require().NoError(err)
				s.Equal(likelihood*impact, score)

				again, err := RiskScore(likelihood, impact)
				s.Require().NoError(err)
				s.Equal(score, again)
			}
		}
	})

	s.Run("out of range inputs rejected", func() {
		for _, pair := range [][2]int{{0, 3}, {6, 3}, {3, 0}, {3, 6}, {-1, -1}} {
			_, err := RiskScore(pair[0], pair[1])
			s.Require().Error(err, "pair %v", pair)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	s.Run("level thresholds", func() {
		s.Equal(RiskCritical, RiskLevelFor(25)) // (5,5)
		s.Equal(RiskCritical, RiskLevelFor(20)) // (4,5)
		s.Equal(RiskHigh, RiskLevelFor(16))     // (4,4)
		s.Equal(RiskHigh, RiskLevelFor(12))
		s.Equal(RiskMedium, RiskLevelFor(9)) // (3,3)
		s.Equal(RiskMedium, RiskLevelFor(6))
		s.Equal(RiskLow, RiskLevelFor(5))
		s.Equal(RiskLow, RiskLevelFor(1)) // (1,1)
	})
}

func (s *ScoringSuite) TestComplianceScore() {
	s.Run("rounds to nearest integer", func() {
		score, err := ComplianceScore(2, 3)
		s.Require().NoError(err)
		s.Equal(67, score)

		score, err = ComplianceScore(1, 3)
		s.Require().NoError(err)
		s.Equal(33, score)

		score, err = ComplianceScore(0, 7)
		s.Require().NoError(err)
		s.Equal(0, score)

		score, err = ComplianceScore(7, 7)
		s.Require().NoError(err)
		s.Equal(100, score)
	})

	s.Run("idempotent across recomputation", func() {
		first, err := ComplianceScore(13, 17)
		s.Require().NoError(err)
		second, err := ComplianceScore(13, 17)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("invalid inputs rejected", func() {
		_, err := ComplianceScore(1, 0)
		s.Require().Error(err)
		_, err = ComplianceScore(-1, 5)
		s.Require().Error(err)
		_, err = ComplianceScore(6, 5)
		s.Require().Error(err)
	})

	s.Run("grade anchors", func() {
		s.Equal("A", Grade(90))
		s.Equal("A", Grade(85))
		s.Equal("A", Grade(80))
		s.Equal("B", Grade(79))
		s.Equal("B", Grade(65))
		s.Equal("B", Grade(60))
		s.Equal("C", Grade(59))
		s.Equal("C", Grade(40))
		s.Equal("D", Grade(39))
		s.Equal("D", Grade(20))
		s.Equal("F", Grade(19))
	})
}

func (s *ScoringSuite) TestCrossLayerRisk() {
	s.Run("single legal layer scenario", func() {
		total := CrossLayerRisk([]Layer{{Count: 3, AvgCriticality: 5, RiskWeight: 1.5}})
		s.InDelta(22.5, total, 1e-9)
		s.Equal(CrossLayerMedium, CrossLayerLevelFor(total))
	})

	s.Run("layers sum", func() {
		total := CrossLayerRisk([]Layer{
			{Count: 2, AvgCriticality: 3, RiskWeight: 1},   // 6
			{Count: 1, AvgCriticality: 4, RiskWeight: 1.5}, // 6
		})
		s.InDelta(12, total, 1e-9)
		s.Equal(CrossLayerLow, CrossLayerLevelFor(total))
	})

	s.Run("bucket boundaries", func() {
		s.Equal(CrossLayerHigh, CrossLayerLevelFor(50.1))
		s.Equal(CrossLayerMedium, CrossLayerLevelFor(50))
		s.Equal(CrossLayerMedium, CrossLayerLevelFor(20))
		s.Equal(CrossLayerLow, CrossLayerLevelFor(19.9))
		s.Equal(CrossLayerLow, CrossLayerLevelFor(10))
		s.Equal(CrossLayerMinimal, CrossLayerLevelFor(9.9))
		s.Equal(CrossLayerMinimal, CrossLayerLevelFor(0))
	})

	s.Run("empty layer set is minimal", func() {
		s.Zero(CrossLayerRisk(nil))
		s.Equal(CrossLayerMinimal, CrossLayerLevelFor(0))
	})
}
