// Package scoring реализует вычисление оценки риска по анкете.
// Модель детерминированная: анкета сворачивается в набор признаков,
// признаки взвешиваются коэффициентами выбранного типа модели,
// итоговый балл переводится в текстовую интерпретацию.
package scoring

import (
	"fmt"

	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// Пороговые значения интерпретации итогового балла.
const (
	highRiskThreshold     = 5.0
	moderateRiskThreshold = 3.0
)

// Константы нормализации возраста и дохода.
const (
	ageMean    = 45.0
	ageStd     = 18.0
	incomeMean = 50000.0
	incomeStd  = 40000.0
)

// weights — коэффициенты признаков для одного типа модели.
type weights struct {
	bias           float64
	age            float64
	income         float64
	unemployed     float64
	education      float64
	socialSupport  float64
	familyHealth   float64
	personalBurden float64
}

// Типы моделей отличаются детализацией коэффициентов: premium сильнее
// учитывает социальные и поведенческие признаки.
var modelWeights = map[string]weights{
	"simple": {
		bias:         3.0,
		age:          0.3,
		income:       -0.4,
		unemployed:   0.8,
		familyHealth: 0.6,
	},
	"advanced": {
		bias:           3.0,
		age:            0.35,
		income:         -0.5,
		unemployed:     0.9,
		education:      -0.2,
		socialSupport:  -0.3,
		familyHealth:   0.7,
		personalBurden: 0.4,
	},
	"premium": {
		bias:           3.0,
		age:            0.4,
		income:         -0.6,
		unemployed:     1.0,
		education:      -0.25,
		socialSupport:  -0.45,
		familyHealth:   0.8,
		personalBurden: 0.6,
	},
}

var maritalSupport = map[string]float64{
	"Single": 0, "Divorced": 0, "Widowed": 0, "Separated": 0,
	"Married": 1, "In a relationship": 1,
}

var educationRank = map[string]float64{
	"High School":       0,
	"Bachelor's Degree": 1,
	"Master's Degree":   2,
	"PhD":               3,
}

// Run вычисляет оценку риска для анкеты выбранным типом модели.
// Неизвестный тип модели считается ошибкой конфигурации задачи.
func Run(modelType string, in models.ScoringInput) (*models.ScoringResult, error) {
	const op = "scoring.Run"
	w, ok := modelWeights[modelType]
	if !ok {
		return nil, fmt.Errorf("%s: unknown model type %q", op, modelType)
	}

	score := w.bias +
		w.age*normalize(float64(in.Age), ageMean, ageStd) +
		w.income*normalize(float64(in.Income), incomeMean, incomeStd) +
		w.unemployed*boolFeature(in.EmploymentStatus == "Unemployed") +
		w.education*educationRank[in.EducationLevel] +
		w.socialSupport*socialSupport(in) +
		w.familyHealth*familyPersonalHealth(in) +
		w.personalBurden*personalBurden(in)

	if score < 0 {
		score = 0
	}

	return &models.ScoringResult{
		Score:       score,
		Explanation: interpretScore(score),
	}, nil
}

// socialSupport объединяет семейное положение и количество детей.
func socialSupport(in models.ScoringInput) float64 {
	return maritalSupport[in.MaritalStatus] + float64(in.NumberOfChildren)
}

// familyPersonalHealth — число отягчающих факторов здоровья.
func familyPersonalHealth(in models.ScoringInput) float64 {
	return boolFeature(in.FamilyHistoryOfDepression == "Yes") +
		boolFeature(in.HistoryOfMentalIllness == "Yes") +
		boolFeature(in.ChronicMedicalConditions == "Yes")
}

// personalBurden — баланс вредных и защитных привычек.
func personalBurden(in models.ScoringInput) float64 {
	return boolFeature(in.SmokingStatus == "Current") +
		boolFeature(in.AlcoholConsumption == "High") -
		boolFeature(in.PhysicalActivityLevel == "Active") -
		boolFeature(in.DietaryHabits == "Healthy") -
		boolFeature(in.SleepPatterns == "Good")
}

func normalize(value, mean, std float64) float64 {
	return (value - mean) / std
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func interpretScore(score float64) string {
	switch {
	case score >= highRiskThreshold:
		return "High risk of depression. Please consult a specialist."
	case score >= moderateRiskThreshold:
		return "Moderate risk. Consider preventive steps and self-assessment."
	default:
		return "Low risk. No immediate concern detected."
	}
}
