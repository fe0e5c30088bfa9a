package workflow

import (
	"testing"

	"loanflow/pkg/core/llm"
)

func TestComputeIncomeAnalysisTakesLargerSource(t *testing.T) {
	analyses := []*llm.DocumentAnalysis{
		{ApplicantName: strPtr("John"), AnnualIncome: intPtr(110000), Confidence: 0.9},
		{ApplicantName: strPtr("John"), AnnualIncome: intPtr(118000), Confidence: 1.0},
	}
	got := ComputeIncomeAnalysis(120000, analyses, 110000, 118000)
	if got.VerifiedIncome != 118000 {
		t.Errorf("verified = %f", got.VerifiedIncome)
	}
	if got.IncomeMismatch {
		t.Error("|120000-118000|/120000 is well under 0.20")
	}
	if got.AverageConfidence < 0.9499 || got.AverageConfidence > 0.9501 {
		t.Errorf("confidence = %f", got.AverageConfidence)
	}
}

func TestComputeIncomeAnalysisMismatch(t *testing.T) {
	got := ComputeIncomeAnalysis(100000, nil, 45000, 0)
	if got.VerifiedIncome != 45000 {
		t.Errorf("verified = %f", got.VerifiedIncome)
	}
	if !got.IncomeMismatch {
		t.Error("0.55 gap must flag a mismatch")
	}
}

func TestComputeIncomeAnalysisNoStatedIncome(t *testing.T) {
	got := ComputeIncomeAnalysis(0, nil, 45000, 0)
	if got.IncomeMismatch {
		t.Error("zero stated income cannot produce a ratio")
	}
}

func TestComputeIncomeAnalysisCreditScore(t *testing.T) {
	analyses := []*llm.DocumentAnalysis{
		{Confidence: 0.5},
		{CreditScore: intPtr(780), Confidence: 0.8},
		{CreditScore: intPtr(700), Confidence: 0.9},
	}
	got := ComputeIncomeAnalysis(0, analyses, 0, 0)
	if got.CreditScore == nil || *got.CreditScore != 780 {
		t.Errorf("first reported score must win, got %v", got.CreditScore)
	}
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		analysis IncomeAnalysis
		want     string
	}{
		{IncomeAnalysis{IncomeMismatch: true, AverageConfidence: 0.99}, RecommendationManualReview},
		{IncomeAnalysis{AverageConfidence: 0.9}, RecommendationApproved},
		{IncomeAnalysis{AverageConfidence: 0.8}, RecommendationManualReview},
		{IncomeAnalysis{AverageConfidence: 0.2}, RecommendationManualReview},
	}
	for i, tc := range cases {
		if got := Recommend(tc.analysis); got != tc.want {
			t.Errorf("case %d: got %s want %s", i, got, tc.want)
		}
	}
}
