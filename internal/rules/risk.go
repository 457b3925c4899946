package rules

import "github.com/roach88/registrar/internal/model"

// HighRiskThreshold separates high from medium risk.
const HighRiskThreshold model.Grade = 250

// AssessRisk decides whether a GPA change crosses below the passing
// threshold and classifies the new GPA.
//
// A student with no final grades before the change has no prior GPA, so
// a first grade below the threshold counts as a crossing.
func AssessRisk(before, after Standing) (model.RiskLevel, bool) {
	if after.GradeCount == 0 || after.GPA >= model.PassingGrade {
		return "", false
	}
	if before.GradeCount > 0 && before.GPA < model.PassingGrade {
		return "", false
	}
	if after.GPA < HighRiskThreshold {
		return model.RiskHigh, true
	}
	return model.RiskMedium, true
}
